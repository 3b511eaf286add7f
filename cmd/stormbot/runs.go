package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hairizuan-noorazman/stormbot/run"
)

var runsFlags struct {
	status string
	limit  int
	offset int
	json   bool
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List load test run history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, closeDB, err := openHistory(cfg, newLogger(cfg))
		if err != nil {
			return err
		}
		defer closeDB()

		var runs []*run.Run
		if runsFlags.status != "" {
			status := run.Status(runsFlags.status)
			if !status.IsValid() {
				return fmt.Errorf("%w: %s", run.ErrInvalidStatus, runsFlags.status)
			}
			runs, err = store.ListByStatus(ctx, status, runsFlags.limit, runsFlags.offset)
		} else {
			runs, err = store.List(ctx, runsFlags.limit, runsFlags.offset)
		}
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}

		if runsFlags.json {
			printJSON(runs)
			return nil
		}
		if len(runs) == 0 {
			fmt.Println("No runs found.")
			return nil
		}

		headers := []string{"ID", "STATUS", "TARGET", "USERS", "DURATION", "REPORT", "CREATED"}
		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			rows = append(rows, []string{
				r.ID.String(),
				string(r.Status),
				r.TargetURL,
				strconv.Itoa(r.Users),
				fmt.Sprintf("%ds", r.Duration),
				r.ReportDir,
				r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			})
		}
		printTable(headers, rows)
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid run id: %w", err)
		}

		ctx := context.Background()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, closeDB, err := openHistory(cfg, newLogger(cfg))
		if err != nil {
			return err
		}
		defer closeDB()

		r, err := store.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get run: %w", err)
		}
		printJSON(r)
		return nil
	},
}

func init() {
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.Flags().StringVar(&runsFlags.status, "status", "", "filter by status (created, running, completed, failed)")
	runsCmd.Flags().IntVar(&runsFlags.limit, "limit", 20, "maximum number of runs")
	runsCmd.Flags().IntVar(&runsFlags.offset, "offset", 0, "number of runs to skip")
	runsCmd.Flags().BoolVar(&runsFlags.json, "json", false, "output as JSON")
	rootCmd.AddCommand(runsCmd)
}
