package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/railsim/formation/internal/storage/memory"
	"github.com/railsim/formation/pkg/core"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <export.json[.gz]>",
	Short: "Print the formations and cars of a snapshot export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		export, err := memory.ReadExport(args[0])
		if err != nil {
			return err
		}
		return printExport(cmd.OutOrStdout(), export)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func printExport(out io.Writer, export *memory.Export) error {
	fmt.Fprintf(out, "export v%d at %s: %d formations, %d cars\n\n",
		export.Version, export.ExportedAt.Format("2006-01-02 15:04:05"), len(export.Formations), len(export.Cars))

	cars := make(map[core.CarID]core.CarRecord, len(export.Cars))
	for _, c := range export.Cars {
		cars[c.ID] = c
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FORMATION\tSIZE\tDIRECTION\tSPEED\tCARS")
	for _, rec := range export.Formations {
		var speed float32
		order := make([]string, 0, len(rec.Entries))
		for _, e := range rec.Entries {
			label := fmt.Sprint(e.Car)
			if e.Dir == core.Reverse {
				label += "'"
			}
			if c, ok := cars[e.Car]; ok {
				speed = c.Speed
				if c.Control {
					label = "[" + label + "]"
				}
			}
			order = append(order, label)
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%.2f\t%s\n", rec.ID, rec.Size, rec.Direction, speed, strings.Join(order, " "))
	}
	return tw.Flush()
}
