package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/ChrisMcGann/LipidKey/pkg/build"
	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a lipid reference database",
	Long: `Build a SQLite reference database from the measured datasets listed in the
config file and the built-in theoretical lipid library. CCS and retention time
predictors are trained on the measured values and attached to the theoretical
lipids.

Examples:
  # Build with datasets from ./lipidkey.toml
  lipidkey build --out lipids.db

  # Rebuild with an explicit config file
  lipidkey build --config ref/lipidkey.toml --out lipids.db --overwrite`,
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	opts := cfg.Build.Options(outputFile)

	fmt.Printf("Building %s...\n", outputFile)
	fmt.Printf("Measured datasets: %d\n", len(opts.Datasets))
	for _, src := range opts.Datasets {
		train := ""
		if src.TrainCCS {
			train = " (CCS training)"
		}
		fmt.Printf("  %s: %s%s\n", src.Tag, src.File, train)
	}

	start := time.Now()
	report, err := build.New(opts, log).Run(cmd.Context())
	if err != nil {
		return err
	}

	pterm.Success.Printfln("Build complete in %s", time.Since(start).Round(time.Millisecond))
	data := pterm.TableData{
		{"Table", "Rows"},
		{"measured", humanize.Comma(int64(report.Measured))},
		{"predicted_mz", humanize.Comma(int64(report.Theoretical))},
		{"predicted_ccs", humanize.Comma(int64(report.PredictedCCS))},
		{"predicted_rt", humanize.Comma(int64(report.PredictedRT))},
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}

	if report.CCSModel != nil {
		fmt.Printf("CCS model: %d samples, RMSE %.2f, MAE %.2f\n", report.CCSModel.N, report.CCSModel.RMSE, report.CCSModel.MAE)
	}
	if report.RTModel != nil {
		fmt.Printf("RT model: %d samples, RMSE %.2f, MAE %.2f\n", report.RTModel.N, report.RTModel.RMSE, report.RTModel.MAE)
	}

	tags := make([]string, 0, len(report.Skipped))
	for tag := range report.Skipped {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		pterm.Warning.Printfln("%s: skipped %d unparsable lipid names", tag, report.Skipped[tag])
	}
	fmt.Printf("Build ID: %s\n", report.BuildID)
	fmt.Printf("Output: %s\n", outputFile)
	return nil
}
