// Copyright 2025 1000m Spaces
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
)

func main() {
	fmt.Println("pos-backsync - Offline Order Backup & Sync Engine")
	fmt.Println("=================================================")
	fmt.Println()
	fmt.Println("pos-backsync keeps locally created POS orders durable on devices that may")
	fmt.Println("lose connectivity, pushes them to the remote order service with bounded")
	fmt.Println("retries, and supports operator-driven backup snapshots and manual resync.")
	fmt.Println()

	fmt.Println("Packages:")
	fmt.Println()
	fmt.Println("1. possqlite/ - SQLite client engine")
	fmt.Println("   Pending/backup order collections, retry policy, automatic sync with")
	fmt.Println("   last-invocation-wins, manual resync with quantity expansion")
	fmt.Println()
	fmt.Println("2. possync/ - shared models + Postgres order intake service")
	fmt.Println("   Wire contract, JWT auth, idempotent batch intake keyed by session")
	fmt.Println()

	fmt.Println("Example:")
	fmt.Println()
	fmt.Println("   examples/posserver/ - runnable net/http intake server")
	fmt.Println("   Run: cd examples/posserver && go run .")
	fmt.Println()
}
