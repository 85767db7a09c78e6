package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/ChrisMcGann/LipidKey/pkg/refdb"
	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize reference database contents",
	Long: `Print build information and row counts of a reference database. Without an
argument the configured database.path is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSummarize,
}

func runSummarize(cmd *cobra.Command, args []string) error {
	path := cfg.Database.Path
	if len(args) == 1 {
		path = args[0]
	}
	store, err := refdb.Open(path, log)
	if err != nil {
		return err
	}
	defer store.Close()

	sum, err := store.Summarize(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Database: %s\n", path)
	fmt.Printf("Build ID: %s\n", sum.Build.BuildID)
	fmt.Printf("Schema version: %s\n", sum.Build.SchemaVersion)
	fmt.Printf("Created: %s (%s)\n", sum.Build.Created.Format(time.RFC3339), humanize.Time(sum.Build.Created))
	if sum.Build.Description != "" {
		fmt.Printf("Description: %s\n", sum.Build.Description)
	}

	count := func(n int) string { return humanize.Comma(int64(n)) }
	data := pterm.TableData{
		{"Records", "Total", "With CCS", "With RT"},
		{"measured", count(sum.Measured), count(sum.MeasuredByCCS), count(sum.MeasuredByRT)},
		{"theoretical", count(sum.Theoretical), count(sum.PredictedCCS), count(sum.PredictedRT)},
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}

	if len(sum.MeasuredSource) == 0 {
		return nil
	}
	tags := make([]string, 0, len(sum.MeasuredSource))
	for tag := range sum.MeasuredSource {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	sources := pterm.TableData{{"Source", "Measured"}}
	for _, tag := range tags {
		sources = append(sources, []string{tag, count(sum.MeasuredSource[tag])})
	}
	fmt.Println()
	return pterm.DefaultTable.WithHasHeader().WithData(sources).Render()
}
