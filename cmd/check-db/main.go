// Package main is a diagnostic tool for testing remote store connectivity and
// inspecting live workspace data. It connects to the configured database,
// pings it, and prints the workspaces and their member counts to stdout. The
// binary exits with a non-zero code on any failure so it can be embedded in
// health checks or CI steps to gate deployments on a reachable store.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/bandroomhq/bandroom/internal/config"
	"github.com/bandroomhq/bandroom/internal/db"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer database.Close()

	fmt.Printf("Connected to %s/%s\n", cfg.Database.Host, cfg.Database.Name)

	fmt.Println("\n=== WORKSPACES ===")
	rows, err := database.Query(`
		SELECT w.id, w.name, w.invite_code, w.created_at,
		       (SELECT COUNT(*) FROM workspace_members m WHERE m.workspace_id = w.id) AS member_count
		FROM workspaces w
		ORDER BY w.created_at DESC
	`)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id, name, inviteCode, createdAt string
		var memberCount int
		if err := rows.Scan(&id, &name, &inviteCode, &createdAt, &memberCount); err != nil {
			log.Printf("Warning: failed to scan workspace row: %v", err)
			continue
		}
		fmt.Printf("Workspace: %s (ID: %s, invite: %s, members: %d, created: %s)\n",
			name, id, inviteCode, memberCount, createdAt)
		count++
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("Row iteration failed: %v", err)
	}

	if count == 0 {
		fmt.Println("No workspaces found.")
	}
}
