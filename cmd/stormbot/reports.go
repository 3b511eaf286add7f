package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hairizuan-noorazman/stormbot/report"
)

var reportsJSON bool

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List stored load test reports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		blobStorage, err := newStorage(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}

		entries, err := report.List(ctx, blobStorage, newLogger(cfg))
		if err != nil {
			return fmt.Errorf("failed to list reports: %w", err)
		}

		if reportsJSON {
			printJSON(entries)
			return nil
		}
		if len(entries) == 0 {
			fmt.Println("No reports found.")
			return nil
		}

		headers := []string{"ID", "CREATED", "AGENTS", "SUCCESSFUL", "REQUESTS", "ERRORS", "AVG LOAD"}
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			row := []string{e.ID, e.CreatedAt.Local().Format("2006-01-02 15:04:05"), "-", "-", "-", "-", "-"}
			if s := e.Summary; s != nil {
				row[2] = strconv.Itoa(s.TotalAgents)
				row[3] = strconv.Itoa(s.SuccessfulAgents)
				row[4] = strconv.Itoa(s.TotalRequests)
				row[5] = strconv.Itoa(s.TotalErrors)
				row[6] = fmt.Sprintf("%.0fms", s.AverageLoadTime)
			}
			rows = append(rows, row)
		}
		printTable(headers, rows)
		return nil
	},
}

var reportsShowCmd = &cobra.Command{
	Use:   "show <report-id>",
	Short: "Show every artifact of one report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		blobStorage, err := newStorage(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}

		d, err := report.Load(ctx, blobStorage, args[0])
		if err != nil {
			return fmt.Errorf("failed to load report %s: %w", args[0], err)
		}
		printJSON(d)
		return nil
	},
}

func init() {
	reportsCmd.Flags().BoolVar(&reportsJSON, "json", false, "output as JSON")
	reportsCmd.AddCommand(reportsShowCmd)
	rootCmd.AddCommand(reportsCmd)
}
