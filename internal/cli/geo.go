package cli

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/fratlas/internal/boundary"
	"github.com/ppiankov/fratlas/internal/model"
	"github.com/ppiankov/fratlas/internal/sim"
)

var boundarySeed uint64

// villagesCmd represents the villages command
var villagesCmd = &cobra.Command{
	Use:   "villages",
	Short: "List the villages with known coordinates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printVillages(cmd.OutOrStdout(), boundary.Villages())
	},
}

// boundaryCmd represents the boundary command
var boundaryCmd = &cobra.Command{
	Use:   "boundary <village> <hectares>",
	Short: "Synthesize a claim boundary as a GeoJSON feature",
	Long: `Boundary generates the polygon a claim of the given area would get
around the village. Unknown villages are placed near the reference point.

Example:
  fratlas boundary Mendha 2.5
  fratlas boundary Tadoba 1.2 --seed 42`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		area, err := strconv.ParseFloat(args[1], 64)
		if err != nil || math.IsNaN(area) || math.IsInf(area, 0) || area <= 0 {
			return fmt.Errorf("invalid area %q: must be a positive number of hectares", args[1])
		}

		synth := boundary.NewSynthesizer(sim.NewRand(boundarySeed))
		polygon := synth.Generate(args[0], area)

		props := map[string]interface{}{
			"village":      args[0],
			"areaHectares": area,
		}
		if loc, ok := boundary.Lookup(args[0]); ok {
			props["matched"] = loc.Village
		}

		feature := model.Feature{Type: "Feature", Geometry: &polygon, Properties: props}
		return writeOutput(cmd.OutOrStdout(), "", feature)
	},
}

func init() {
	rootCmd.AddCommand(villagesCmd)
	rootCmd.AddCommand(boundaryCmd)

	boundaryCmd.Flags().Uint64Var(&boundarySeed, "seed", 0, "random seed (0: random)")
}

func printVillages(w io.Writer, villages []model.VillageLocation) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VILLAGE\tDISTRICT\tSTATE\tLAT\tLNG")
	for _, v := range villages {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\t%.4f\n", v.Village, v.District, v.State, v.Lat, v.Lng)
	}
	return tw.Flush()
}
