package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	prerrors "github.com/randalmurphal/proref/errors"
)

func (c *cli) relatedCmd() *cobra.Command {
	var flags struct {
		k       int
		min     float64
		refresh bool
		json    bool
	}
	cmd := &cobra.Command{
		Use:   "related <ticket>",
		Short: "List the tickets most similar to a ticket",
		Long: "Related ranks tickets by embedding similarity. Tickets without a current\n" +
			"embedding cannot be compared and are listed separately. With --refresh the\n" +
			"stored related-ticket links are recomputed and printed instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("min") && (flags.min < 0 || flags.min > 1) {
				return prerrors.Validation("--min must be between 0 and 1")
			}
			if cmd.Flags().Changed("k") && flags.k < 1 {
				return prerrors.Validation("-k must be at least 1")
			}
			return c.withApp(cmd, func(a *app) error {
				ctx := cmd.Context()
				id := args[0]

				if flags.refresh {
					links, err := a.engine.RefreshLinks(ctx, id)
					if err != nil {
						return err
					}
					if flags.json {
						return writeJSON(c.stdout, links)
					}
					tw := tabwriter.NewWriter(c.stdout, 0, 0, 2, ' ', 0)
					for _, l := range links {
						fmt.Fprintf(tw, "%s\t%.3f\n", l.ToID, l.Similarity)
					}
					if err := tw.Flush(); err != nil {
						return err
					}
					fmt.Fprintf(c.stdout, "%d links stored for %s\n", len(links), id)
					return nil
				}

				cfg := a.engine.Config()
				k, minSim := cfg.RelatedK, cfg.RelatedMin
				if cmd.Flags().Changed("k") {
					k = flags.k
				}
				if cmd.Flags().Changed("min") {
					minSim = flags.min
				}
				res, err := a.engine.Related(ctx, id, k, minSim)
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
					fmt.Fprintf(tw, "%s\t%.3f\n", m.TicketID, m.Similarity)
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
	f.BoolVar(&flags.refresh, "refresh", false, "Recompute and store the related-ticket links")
	f.BoolVar(&flags.json, "json", false, "Print JSON")
	return cmd
}
