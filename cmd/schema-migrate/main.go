// schema-migrate applies the AILAB Postgres schema and reports its state.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ayuboiii/AILAB/internal/store"
)

var (
	connStr string
	timeout time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "schema-migrate",
		Short: "Manage the AILAB Postgres schema",
		Long: `Applies the schema used by STORE_BACKEND=postgres: work items,
bandit experiments, arms, the append-only event ledger, and explanations.`,
	}

	rootCmd.PersistentFlags().StringVarP(&connStr, "conn", "c", os.Getenv("POSTGRES_CONN"), "Postgres connection string (defaults to POSTGRES_CONN)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall command timeout")

	rootCmd.AddCommand(upCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Create all tables and indexes (idempotent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			pg, err := connect()
			if err != nil {
				return err
			}
			defer pg.Close()

			if err := pg.ApplySchema(ctx); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
			fmt.Println("Schema applied")
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check connectivity and report row counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			pg, err := connect()
			if err != nil {
				return err
			}
			defer pg.Close()

			counts, err := pg.TableCounts(ctx)
			if err != nil {
				return fmt.Errorf("failed to read table counts: %w", err)
			}
			fmt.Println("=== Schema Status ===")
			for _, c := range counts {
				fmt.Printf("%-22s %d rows\n", c.Table, c.Rows)
			}
			return nil
		},
	}
}

func connect() (*store.Postgres, error) {
	if connStr == "" {
		return nil, fmt.Errorf("connection string is required (--conn or POSTGRES_CONN)")
	}
	pg, err := store.NewPostgres(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return pg, nil
}
