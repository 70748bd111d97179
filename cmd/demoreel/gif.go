package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/v0xg/demoreel/internal/recorder"
)

var (
	gifOutput   string
	gifMaxWidth uint
	gifNoCursor bool
)

func newGIFCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gif <recording-dir>",
		Short: "Render a GIF from a finished recording",
		Args:  cobra.ExactArgs(1),
		RunE:  runGIF,
	}
	cmd.Flags().StringVarP(&gifOutput, "output", "o", "", "Output filename (default <recording-dir>/preview.gif)")
	cmd.Flags().UintVar(&gifMaxWidth, "max-width", 800, "Maximum GIF width in pixels")
	cmd.Flags().BoolVar(&gifNoCursor, "no-cursor", false, "Disable cursor overlay")
	return cmd
}

func runGIF(cmd *cobra.Command, args []string) error {
	dir := args[0]
	manifest, err := recorder.ReadManifest(dir)
	if err != nil {
		return err
	}

	out := gifOutput
	if out == "" {
		out = filepath.Join(dir, recorder.PreviewFile)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "→ Generating GIF (%d frames)... ", len(manifest.Frames))
	size, err := recorder.EncodeGIF(manifest, out, recorder.GIFOptions{
		MaxWidth: gifMaxWidth,
		NoCursor: gifNoCursor,
	})
	if err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "failed")
		return fmt.Errorf("GIF generation failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "done")
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved to %s (%.1f MB)\n", out, float64(size)/(1024*1024))
	return nil
}
