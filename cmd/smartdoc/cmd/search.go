package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newSearchCmd creates the search command.
func newSearchCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a hybrid search from the command line",
		Args:  cobra.MinimumNArgs(1),
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

			resp, err := a.pipeline.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			fmt.Fprintln(cmd.OutOrStdout(), resp.Answer)
			if len(resp.Results) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "\nSources:")
				for i, res := range resp.Results {
					fmt.Fprintf(cmd.OutOrStdout(), "%d. %s (score %.4f, %s)\n   %s\n",
						i+1, res.Filename, res.HybridScore, res.Match, res.Snippet)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the full response as JSON")
	return cmd
}
