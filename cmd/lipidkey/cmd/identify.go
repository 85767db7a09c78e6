package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/ChrisMcGann/LipidKey/pkg/core"
	"github.com/ChrisMcGann/LipidKey/pkg/filter"
	"github.com/ChrisMcGann/LipidKey/pkg/identify"
	"github.com/ChrisMcGann/LipidKey/pkg/reader/features"
	"github.com/ChrisMcGann/LipidKey/pkg/refdb"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var identifyCmd = &cobra.Command{
	Use:   "identify",
	Short: "Identify lipid features against a reference database",
	Long: `Identify each feature of a CSV feature table (mz,rt,ccs followed by one
intensity column per sample). Levels are tried from the most to the least
confident; the first level that yields candidates wins. Unmatched features are
labelled UNK_{mz}_{rt}_{ccs}.

Examples:
  # Identify with default tolerances, all levels
  lipidkey identify --db lipids.db --in features.csv

  # Negative mode, m/z and CCS only, JSON output
  lipidkey identify --in features.csv --esi-mode neg --no-rt --json

  # Restrict to measured references
  lipidkey identify --in features.csv --level measured-mz-rt-ccs,measured-mz-ccs,measured-mz`,
	RunE: runIdentify,
}

type featureResult struct {
	MZ         float64   `json:"mz"`
	RT         float64   `json:"rt"`
	CCS        float64   `json:"ccs"`
	Level      string    `json:"level,omitempty"`
	Candidates []string  `json:"candidates"`
	Scores     []float64 `json:"scores"`
}

func runIdentify(cmd *cobra.Command, args []string) error {
	params, err := cfg.Identify.Params()
	if err != nil {
		return err
	}
	if params.ESIMode, err = filter.ParseESIMode(params.ESIMode); err != nil {
		return err
	}

	inFile, err := os.Open(inputFile)
	if err != nil {
		return errors.Wrap(err, "failed to open feature table")
	}
	defer inFile.Close()
	feats, err := features.ReadAll(inFile)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", inputFile)
	}
	ds, err := core.NewDataset(feats, params.ESIMode)
	if err != nil {
		return err
	}

	store, err := refdb.Open(cfg.Database.Path, log)
	if err != nil {
		return err
	}
	defer store.Close()

	engine := identify.NewEngine(store, log)
	if err := identify.Annotate(cmd.Context(), engine, ds, params); err != nil {
		return err
	}
	ids := ds.Identifications()

	if jsonOutput {
		out := make([]featureResult, len(ds.Features))
		for i, f := range ds.Features {
			out[i] = featureResult{MZ: f.MZ, RT: f.RT, CCS: f.CCS, Level: ids[i].Level, Candidates: ids[i].Candidates, Scores: ids[i].Scores}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	data := pterm.TableData{{"m/z", "RT", "CCS", "Level", "Best candidate", "Score", "Candidates"}}
	for i, f := range ds.Features {
		score := ""
		if len(ids[i].Scores) > 0 {
			score = strconv.FormatFloat(ids[i].Scores[0], 'f', 2, 64)
		}
		data = append(data, []string{
			strconv.FormatFloat(f.MZ, 'f', 4, 64),
			strconv.FormatFloat(f.RT, 'f', 2, 64),
			strconv.FormatFloat(f.CCS, 'f', 2, 64),
			ids[i].Level,
			ids[i].Best(),
			score,
			strconv.Itoa(len(ids[i].Candidates)),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}

	printLevelCounts(identify.CountLevels(ids), len(ids))
	return nil
}

func printLevelCounts(counts map[string]int, total int) {
	fmt.Println()
	for _, l := range identify.Levels() {
		if n := counts[string(l)]; n > 0 {
			fmt.Printf("%-24s %s\n", l, humanize.Comma(int64(n)))
		}
	}
	identified := total - counts[""]
	pterm.Info.Printfln("Identified %s of %s features", humanize.Comma(int64(identified)), humanize.Comma(int64(total)))
}
