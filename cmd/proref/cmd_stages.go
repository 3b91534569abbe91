package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/proref"
	"github.com/randalmurphal/proref/ticket"
)

func (c *cli) selector() proref.Selector {
	return proref.Selector{IDs: c.flags.tickets, Force: c.flags.force}
}

// withApp opens the app for the duration of fn.
func (c *cli) withApp(cmd *cobra.Command, fn func(a *app) error) error {
	a, err := c.open(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func (c *cli) fetchCmd() *cobra.Command {
	var flags struct {
		jql   string
		limit int
	}
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch tickets from the configured source",
		Long: "Fetch reads tickets from Jira, GitHub or GitLab and stores their content.\n" +
			"Tickets whose content changed since the last fetch get a new fingerprint,\n" +
			"which marks everything derived from them as stale.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(a *app) error {
				q := proref.Query{Expression: flags.jql, IDs: c.flags.tickets, Limit: flags.limit}
				c.report(a.engine.RunFetch(cmd.Context(), q))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&flags.jql, "jql", "", "Query selecting the tickets (defaults to the configured backlog query)")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "Maximum number of tickets to fetch")
	return cmd
}

func (c *cli) embedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "embed",
		Short: "Embed tickets whose embedding is missing or stale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(a *app) error {
				c.report(a.engine.RunEmbed(cmd.Context(), c.selector()))
				return nil
			})
		},
	}
}

func (c *cli) scoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score",
		Short: "Score ticket quality",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(a *app) error {
				c.report(a.engine.RunScore(cmd.Context(), c.selector()))
				return nil
			})
		},
	}
}

func (c *cli) generateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "generate questions|testcases",
		Short:     "Generate refinement questions or test cases",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"questions", "testcases"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := ticket.ParseKind(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(a *app) error {
				c.report(a.engine.RunGenerate(cmd.Context(), kind, c.selector()))
				return nil
			})
		},
	}
}

func (c *cli) publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish questions|testcases",
		Short: "Post generated artifacts to their tickets as comments",
		Long: "Publish posts each unpublished artifact once. Artifacts made from an older\n" +
			"version of the ticket are not published; regenerate them first.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"questions", "testcases"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := ticket.ParseKind(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(a *app) error {
				c.report(a.engine.RunPublish(cmd.Context(), kind, c.selector()))
				return nil
			})
		},
	}
}

func (c *cli) runCmd() *cobra.Command {
	var flags struct {
		jql   string
		limit int
	}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every stage in order",
		Long: "Run fetches, embeds, scores and generates both artifact kinds, stopping at\n" +
			"the first stage that fails outright. Publishing is included when\n" +
			"publish_on_run is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(a *app) error {
				q := proref.Query{Expression: flags.jql, IDs: c.flags.tickets, Limit: flags.limit}
				res, err := a.engine.RunAll(cmd.Context(), q, c.selector())
				for _, b := range res.Batches {
					c.printBatch(b)
				}
				c.record(res.ExitCode())
				if err != nil {
					c.record(1)
					fmt.Fprintf(c.stderr, "run %s stopped: %v\n", res.RunID, err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&flags.jql, "jql", "", "Query selecting the tickets to fetch")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "Maximum number of tickets to fetch")
	return cmd
}
