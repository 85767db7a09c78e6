package cmd

import (
	"fmt"
	"strconv"

	"github.com/ChrisMcGann/LipidKey/pkg/lipid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var mzCmd = &cobra.Command{
	Use:   "mz NAME",
	Short: "Print formula, mass and adduct m/z of a lipid",
	Long: `Print the molecular formula, monoisotopic mass and adduct m/z values of one
lipid species given by its short name.

Examples:
  lipidkey mz "PC(34:1)"
  lipidkey mz "PE(p16:0/20:4)" --adduct "[M+H]+" --adduct "[M-H]-"
  lipidkey mz "GM1(d36:1)" -a "[M-2H]2-"`,
	Args: cobra.ExactArgs(1),
	RunE: runMZ,
}

func runMZ(cmd *cobra.Command, args []string) error {
	parsed, err := lipid.Parse(args[0])
	if err != nil {
		return err
	}
	sp, err := parsed.Species()
	if err != nil {
		return err
	}

	fmt.Printf("Lipid: %s\n", sp.Name())
	fmt.Printf("Formula: %s\n", sp.Formula())
	fmt.Printf("Monoisotopic mass: %.6f\n", sp.Monoiso())
	for _, w := range sp.Warnings() {
		pterm.Warning.Println(w)
	}

	data := pterm.TableData{{"Adduct", "m/z"}}
	for _, a := range adducts {
		mz, err := sp.AdductMZ(a)
		if err != nil {
			return err
		}
		data = append(data, []string{a, strconv.FormatFloat(mz, 'f', 6, 64)})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
