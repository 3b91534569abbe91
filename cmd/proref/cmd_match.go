package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	prerrors "github.com/randalmurphal/proref/errors"
)

func (c *cli) matchCmd() *cobra.Command {
	var flags struct {
		k    int
		min  float64
		json bool
	}
	cmd := &cobra.Command{
		Use:   "match <text>...",
		Short: "Find the tickets closest to a free-text question",
		Long: "Match embeds the given text with the configured embedding provider and\n" +
			"ranks the stored tickets by similarity to it. Run embed first so tickets\n" +
			"have current embeddings.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("min") && (flags.min < 0 || flags.min > 1) {
				return prerrors.Validation("--min must be between 0 and 1")
			}
			if cmd.Flags().Changed("k") && flags.k < 1 {
				return prerrors.Validation("-k must be at least 1")
			}
			return c.withApp(cmd, func(a *app) error {
				cfg := a.engine.Config()
				k, minSim := cfg.RelatedK, cfg.RelatedMin
				if cmd.Flags().Changed("k") {
					k = flags.k
				}
				if cmd.Flags().Changed("min") {
					minSim = flags.min
				}

				res, err := a.engine.Match(cmd.Context(), strings.Join(args, " "), k, minSim)
				if err != nil {
					return err
				}
				if flags.json {
					return writeJSON(c.stdout, res)
				}

				if len(res.Matches) == 0 {
					fmt.Fprintf(c.stdout, "No tickets at or above similarity %.2f\n", minSim)
				}
				tw := tabwriter.NewWriter(c.stdout, 0, 0, 2, ' ', 0)
				for _, m := range res.Matches {
					fmt.Fprintf(tw, "%s\t%.3f\t%s\n", m.ID, m.Similarity, m.Title)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				if len(res.Unindexed) > 0 {
					fmt.Fprintf(c.stdout, "Not comparable: %s\n", strings.Join(res.Unindexed, ", "))
				}
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.IntVarP(&flags.k, "k", "k", 5, "Number of tickets to list")
	f.Float64Var(&flags.min, "min", 0.8, "Minimum similarity")
	f.BoolVar(&flags.json, "json", false, "Print JSON")
	return cmd
}
