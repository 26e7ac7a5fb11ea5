package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"agency-crm/internal/config"
	"agency-crm/internal/database"
	"agency-crm/internal/db"
	"agency-crm/migrations"

	"github.com/jackc/pgx/v5"
)

// Business tables in dependency order. Users and settings are kept unless -all is given.
var businessTables = []string{
	"project_files",
	"payments",
	"budget_lines",
	"project_services",
	"invoices",
	"budgets",
	"tasks",
	"sprints",
	"milestones",
	"project_members",
	"projects",
	"leads",
	"services",
	"user_preferences",
}

func main() {
	all := flag.Bool("all", false, "also delete users and settings")
	yes := flag.Bool("yes", false, "skip the confirmation prompt")
	flag.Parse()

	fmt.Println("========================================")
	fmt.Println("   Reset Database for Testing")
	fmt.Println("========================================")
	fmt.Println()
	fmt.Println("WARNING: This will DELETE all projects, leads, billing and tasks.")
	if *all {
		fmt.Println("WARNING: -all also deletes every user and setting.")
	}
	fmt.Println()

	if !*yes {
		fmt.Print("Type 'yes' to confirm: ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "yes" {
			fmt.Println("Reset cancelled.")
			return
		}
	}

	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}
	defer pool.Close()

	// make sure every table exists before truncating
	if err := database.NewMigrator(pool, migrations.FS).RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v\n", err)
	}

	tables := businessTables
	if *all {
		tables = append(append([]string{}, tables...), "users", "system_settings")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v\n", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range tables {
		if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+pgx.Identifier{table}.Sanitize()+" RESTART IDENTITY CASCADE"); err != nil {
			log.Fatalf("Failed to truncate %s: %v\n", table, err)
		}
		fmt.Printf("  - Cleared %s\n", table)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit transaction: %v\n", err)
	}

	if *all {
		fmt.Println("  - Users and settings removed. Configure a bootstrap admin before the next start.")
	}
	fmt.Println()
	fmt.Println("Database reset successful.")
}
