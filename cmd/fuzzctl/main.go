// Command fuzzctl is the ambient inspection CLI for a running or
// previously-persisted fuzzing campaign: validating a config file
// (config-validate) and summarizing a persisted bitmap directory
// (bitmap-dump). It has no command for mutator pool status. It never
// drives the bridge itself — that surface belongs to the host fuzzer via
// cmd/fuzzbridge.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/covfuzz/mutacore/internal/bitmap"
	"github.com/covfuzz/mutacore/internal/config"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fuzzctl",
		Short: "Inspect a dbfuzz mutation campaign's configuration and coverage state",
	}
	root.AddCommand(newConfigValidateCmd())
	root.AddCommand(newBitmapDumpCmd())
	return root
}

func newConfigValidateCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "config-validate",
		Short: "Load and validate a campaign config.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(path)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), errStyle.Render("invalid: "+err.Error()))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), headerStyle.Render("config OK"))
			fmt.Fprintf(cmd.OutOrStdout(), "  target:      %s %s\n", cfg.Target.DBMS, cfg.Target.DBMSVersion)
			fmt.Fprintf(cmd.OutOrStdout(), "  bitmap size: %d\n", cfg.Bitmap.MapSize)
			fmt.Fprintf(cmd.OutOrStdout(), "  energy:      min=%d max=%d rate=%.1f\n",
				cfg.Energy.MinEnergy, cfg.Energy.MaxEnergy, cfg.Energy.ExchangeRate)
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("ready"))
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "config.yaml", "path to config.yaml")
	return cmd
}

func newBitmapDumpCmd() *cobra.Command {
	var dir string
	var size int
	cmd := &cobra.Command{
		Use:   "bitmap-dump",
		Short: "Summarize a persisted coverage bitmap directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := loadPersistedBitmap(dir, size)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), headerStyle.Render("coverage summary"))
			fmt.Fprintf(cmd.OutOrStdout(), "  map size:  %d\n", b.Size())
			fmt.Fprintf(cmd.OutOrStdout(), "  hit count: %d\n", b.HitCount())
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "persisted bitmap directory")
	cmd.Flags().IntVarP(&size, "size", "s", 65536, "bitmap map size")
	return cmd
}

// loadPersistedBitmap rebuilds a Bitmap's hit-count summary from the
// persister's flat on-disk files, purely for offline inspection.
func loadPersistedBitmap(dir string, size int) (*bitmap.Bitmap, error) {
	b := bitmap.New(size)
	boolPath := dir + "/bool.txt"
	data, err := os.ReadFile(boolPath)
	if err != nil {
		return nil, fmt.Errorf("fuzzctl: read %s: %w", boolPath, err)
	}
	snapshot := make([]byte, size)
	n := 0
	val := 0
	has := false
	flush := func() {
		if has && n < size {
			if val != 0 {
				snapshot[n] = 1
			}
			n++
		}
		val = 0
		has = false
	}
	for _, c := range data {
		switch {
		case c >= '0' && c <= '9':
			val = val*10 + int(c-'0')
			has = true
		case c == ',':
			flush()
		}
	}
	flush()
	if _, err := b.Add(snapshot); err != nil {
		return nil, err
	}
	return b, nil
}
