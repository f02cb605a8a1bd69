package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/smartdocfinder/smartdoc/internal/ingest"
)

// newIndexCmd creates the index command.
func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [files or directories...]",
		Short: "Ingest documents from the command line",
		Long: `Extract, deduplicate, store, and index the given files. Directories
are ingested one level deep. Duplicate content is skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			inputs, err := collectInputs(args)
			if err != nil {
				return err
			}
			if len(inputs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to ingest.")
				return nil
			}

			results, err := a.ingester.IngestFiles(cmd.Context(), inputs)
			if err != nil {
				return err
			}

			var saved, dup, failed int
			for _, r := range results {
				switch r.Outcome {
				case ingest.OutcomeSaved:
					saved++
					fmt.Fprintf(cmd.OutOrStdout(), "indexed   %s (id %d)\n", r.Filename, r.DocumentID)
				case ingest.OutcomeDuplicate:
					dup++
					fmt.Fprintf(cmd.OutOrStdout(), "duplicate %s\n", r.Filename)
				default:
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "failed    %s: %s\n", r.Filename, r.Error)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d indexed, %d duplicates, %d failed\n", saved, dup, failed)
			return nil
		},
	}
	return cmd
}

func collectInputs(args []string) ([]ingest.FileInput, error) {
	var inputs []ingest.FileInput
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			inputs = append(inputs, ingest.FileInput{Path: arg, Filename: filepath.Base(arg)})
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			inputs = append(inputs, ingest.FileInput{
				Path:     filepath.Join(arg, e.Name()),
				Filename: e.Name(),
			})
		}
	}
	return inputs, nil
}
