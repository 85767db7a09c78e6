package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/ChrisMcGann/LipidKey/pkg/core"
	"github.com/ChrisMcGann/LipidKey/pkg/filter"
	"github.com/ChrisMcGann/LipidKey/pkg/reader/features"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// maxReported is the number of invalid features listed by validate.
const maxReported = 10

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a feature table",
	Long:  `Validate that a feature table is properly formatted and that every feature carries usable m/z, retention time and CCS values.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return errors.Wrap(err, "failed to open feature table")
	}
	defer f.Close()

	r := features.NewReader(f)
	var feats []core.Feature
	for r.Next() {
		feats = append(feats, *r.Feature())
	}
	if err := r.Err(); err != nil {
		return err
	}

	ok, bad := filter.ValidFeatures(feats)
	fmt.Printf("Features: %s\n", humanize.Comma(int64(len(feats))))
	fmt.Printf("Samples: %d\n", r.Samples())
	fmt.Printf("Valid: %s\n", humanize.Comma(int64(len(ok))))
	if len(bad) == 0 {
		pterm.Success.Println("Feature table is valid")
		return nil
	}

	idx := make([]int, 0, len(bad))
	for i := range bad {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx[:min(len(idx), maxReported)] {
		pterm.Warning.Printfln("feature %d: %v", i+1, bad[i])
	}
	if len(idx) > maxReported {
		fmt.Printf("... and %d more\n", len(idx)-maxReported)
	}
	return errors.Newf("%d invalid features", len(bad))
}
