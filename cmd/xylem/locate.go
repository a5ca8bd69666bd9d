package main

import (
	"fmt"
	"strconv"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/spf13/cobra"

	"github.com/chazu/xylem/pkg/centerline"
	"github.com/chazu/xylem/pkg/metrics"
)

var locateCmd = &cobra.Command{
	Use:   "locate <centerline> <x> <y> <z>",
	Short: "Find the centerline sample nearest to a point",
	Args:  cobra.ExactArgs(4),
	RunE:  runLocate,
}

var diameterCmd = &cobra.Command{
	Use:   "diameter <centerline> [branch,index]",
	Short: "Print the diameter at a location, or the maximum diameter",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runDiameter,
}

func init() {
	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(diameterCmd)
}

func runLocate(cmd *cobra.Command, args []string) error {
	var p [3]float64
	for i, a := range args[1:] {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return fmt.Errorf("coordinate %q: %w", a, err)
		}
		p[i] = v
	}
	app, _, err := loadPatient(patientID("", args[0]), args[0], "")
	if err != nil {
		return err
	}
	loc, err := app.Locate(v3.Vec{X: p[0], Y: p[1], Z: p[2]})
	if err != nil {
		return err
	}
	return printSample(app.Patient().Tree, loc)
}

func runDiameter(cmd *cobra.Command, args []string) error {
	app, p, err := loadPatient(patientID("", args[0]), args[0], "")
	if err != nil {
		return err
	}
	if len(args) == 1 {
		loc, _, err := app.MaxDiameter()
		if err != nil {
			return err
		}
		fmt.Println(metrics.MaxDiameterName)
		return printSample(p.Tree, loc)
	}
	loc, err := parseLocation(args[1])
	if err != nil {
		return err
	}
	return printSample(p.Tree, loc)
}

func printSample(t *centerline.Tree, loc centerline.Location) error {
	pos, err := t.Position(loc)
	if err != nil {
		return err
	}
	d, err := metrics.DiameterAt(t, loc)
	if err != nil {
		return err
	}
	fmt.Printf("Location: %s\n", metrics.FormatLocation(loc))
	fmt.Printf("Position: [%.4f, %.4f, %.4f]\n", pos.X, pos.Y, pos.Z)
	fmt.Printf("Diameter: %.4f mm\n", d)
	return nil
}
