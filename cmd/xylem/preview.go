package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/xylem/pkg/marker"
	"github.com/chazu/xylem/pkg/preview"
)

var (
	previewOut      string
	previewView     string
	previewWidth    int
	previewHeight   int
	previewSuggest  bool
	previewNoLabels bool
)

var previewCmd = &cobra.Command{
	Use:   "preview <centerline>",
	Short: "Render a PNG of the branch tree",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreview,
}

func init() {
	previewCmd.Flags().StringVarP(&previewOut, "out", "o", "preview.png", "output PNG path")
	previewCmd.Flags().StringVar(&previewView, "view", "xy", "projection plane (xy, xz or yz)")
	previewCmd.Flags().IntVar(&previewWidth, "width", 800, "image width in pixels")
	previewCmd.Flags().IntVar(&previewHeight, "height", 600, "image height in pixels")
	previewCmd.Flags().BoolVar(&previewSuggest, "suggest", false, "draw the suggested inlet and outlets")
	previewCmd.Flags().BoolVar(&previewNoLabels, "no-labels", false, "omit branch and marker labels")
	rootCmd.AddCommand(previewCmd)
}

func runPreview(cmd *cobra.Command, args []string) error {
	view, err := preview.ParseView(previewView)
	if err != nil {
		return err
	}
	_, p, err := loadPatient(patientID("", args[0]), args[0], "")
	if err != nil {
		return err
	}
	var markers []marker.Marker
	if previewSuggest {
		set, err := marker.NewSet(p.Locator, cfg.MarkerOptions()).Suggest()
		if err != nil {
			return err
		}
		markers = set.Markers()
	}
	opts := preview.DefaultOptions()
	opts.View, opts.Width, opts.Height, opts.Labels = view, previewWidth, previewHeight, !previewNoLabels
	img, err := preview.Render(p.Tree, markers, opts)
	if err != nil {
		return err
	}

	f, err := os.Create(previewOut)
	if err != nil {
		return err
	}
	if err := preview.WritePNG(f, img); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("Preview: %s\n", previewOut)
	return nil
}
