package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/moldworks/moldlab-cli/internal/model"
	"github.com/moldworks/moldlab-cli/internal/taguchi"
)

var (
	matrixCSV string
	matrixOut string
)

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Print and verify the L9 design matrix",
	Long: `Prints the design matrix (built-in canonical L9 or an external CSV)
and verifies its orthogonality: each factor level must appear equally
often, and every pair of levels equally often across factor pairs.

Examples:
  # Show the built-in L9 design
  moldlab matrix

  # Verify an external matrix and export it
  moldlab matrix --matrix outputs/taguchi_L9_matrix.csv --out l9.csv`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		design, err := loadDesign(matrixCSV)
		if err != nil {
			return err
		}

		if err := taguchi.CheckOrthogonal(design); err != nil {
			return eris.Wrap(err, "matrix: orthogonality check")
		}

		fmt.Println("trial  context  cot  format  persona")
		for _, c := range design {
			fmt.Printf("%-6s %7d %4d %7d %8d\n", c.TrialID, c.Context, c.CoT, c.Format, c.Persona)
		}
		fmt.Printf("%d trials, orthogonality OK\n", len(design))

		if matrixOut != "" {
			if err := taguchi.WriteDesignCSV(matrixOut, design); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", matrixOut)
		}
		return nil
	},
}

func init() {
	matrixCmd.Flags().StringVar(&matrixCSV, "matrix", "", "design matrix CSV (default: built-in L9)")
	matrixCmd.Flags().StringVar(&matrixOut, "out", "", "export the design to this CSV path")
	rootCmd.AddCommand(matrixCmd)
}

// loadDesign returns the external matrix when a path is given, the
// canonical L9 otherwise.
func loadDesign(path string) ([]model.FactorCombination, error) {
	if path == "" {
		return taguchi.Design(), nil
	}
	return taguchi.LoadDesignCSV(path)
}
