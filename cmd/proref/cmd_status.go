package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/randalmurphal/proref"
	prerrors "github.com/randalmurphal/proref/errors"
	"github.com/randalmurphal/proref/quality"
	"github.com/randalmurphal/proref/ticket"
)

func (c *cli) statusCmd() *cobra.Command {
	var flags struct {
		json  bool
		stage string
		kind  string
		state string
	}
	cmd := &cobra.Command{
		Use:   "status [ticket]",
		Short: "Show where tickets stand in the pipeline",
		Long: "Without arguments status counts tickets per stage and state and breaks\n" +
			"down the current quality scores. With a ticket id it shows that ticket's\n" +
			"stages. With --stage and --state it lists the tickets in that state.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app) error {
				ctx := cmd.Context()
				switch {
				case len(args) == 1:
					return c.ticketStatus(ctx, a.engine, args[0], flags.json)
				case flags.stage != "":
					return c.listState(ctx, a.engine, flags.stage, flags.kind, flags.state, flags.json)
				default:
					return c.overview(ctx, a.engine, flags.json)
				}
			})
		},
	}
	f := cmd.Flags()
	f.BoolVar(&flags.json, "json", false, "Print JSON")
	f.StringVar(&flags.stage, "stage", "", "List tickets in this stage: fetch, embed, score, generate or publish")
	f.StringVar(&flags.kind, "kind", "questions", "Artifact kind for the generate and publish stages")
	f.StringVar(&flags.state, "state", "stale", "State to list with --stage")
	return cmd
}

func (c *cli) ticketStatus(ctx context.Context, e *proref.Engine, id string, asJSON bool) error {
	st, err := e.Status(ctx, id)
	if err != nil {
		return err
	}
	score, err := e.CurrentScore(ctx, id)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(c.stdout, struct {
			ticket.Status
			Quality *ticket.QualityScore `json:"quality,omitempty"`
		}{st, score})
	}

	out := c.stdout
	fmt.Fprintf(out, "Ticket:      %s\n", st.TicketID)
	fmt.Fprintf(out, "Fingerprint: %s\n", st.Fingerprint.Short())
	fmt.Fprintf(out, "Fetch:       %s\n", st.Fetch)
	fmt.Fprintf(out, "Embed:       %s\n", st.Embed)
	fmt.Fprintf(out, "Score:       %s\n", st.Score)
	title := cases.Title(language.English)
	for _, k := range ticket.Kinds {
		fmt.Fprintf(out, "%-13s%s (%s)\n", title.String(k.Label())+":", st.Generate[k], st.Publish[k])
	}
	if score != nil {
		fmt.Fprintf(out, "Quality:     %d/10 %s\n", score.Score, score.Category)
		if score.Rationale != "" {
			fmt.Fprintf(out, "  %s\n", score.Rationale)
		}
		for _, issue := range score.Issues {
			fmt.Fprintf(out, "  - %s\n", issue)
		}
	}
	return nil
}

func (c *cli) listState(ctx context.Context, e *proref.Engine, stage, kind, state string, asJSON bool) error {
	s := ticket.Stage(stage)
	switch s {
	case ticket.StageFetch, ticket.StageEmbed, ticket.StageScore, ticket.StageGenerate, ticket.StagePublish:
	default:
		return prerrors.Validation("unknown stage %q", stage)
	}
	k, err := ticket.ParseKind(kind)
	if err != nil {
		return prerrors.Validation("%v", err)
	}
	ids, err := e.TicketsIn(ctx, s, k, state)
	if err != nil {
		return err
	}
	if asJSON {
		if ids == nil {
			ids = []string{}
		}
		return writeJSON(c.stdout, ids)
	}
	for _, id := range ids {
		fmt.Fprintln(c.stdout, id)
	}
	return nil
}

func (c *cli) overview(ctx context.Context, e *proref.Engine, asJSON bool) error {
	counts, err := e.Counts(ctx)
	if err != nil {
		return err
	}
	breakdown, err := e.QualityBreakdown(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(c.stdout, struct {
			Counts  ticket.Counts     `json:"counts"`
			Quality quality.Breakdown `json:"quality"`
		}{counts, breakdown})
	}

	tw := tabwriter.NewWriter(c.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tSTATES")
	for _, key := range ticket.StageKeys() {
		fmt.Fprintf(tw, "%s\t%s\n", key, formatStates(counts[key]))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(c.stdout)
	printBreakdown(c.stdout, breakdown)
	return nil
}

func printBreakdown(out io.Writer, b quality.Breakdown) {
	if b.Total == 0 {
		fmt.Fprintf(out, "Quality: no current scores (%d unscored)\n", b.Unscored)
		return
	}
	fmt.Fprintf(out, "Quality: %d scored, average %.1f, %d unscored\n", b.Total, b.Average, b.Unscored)
	for _, cat := range ticket.Categories {
		fmt.Fprintf(out, "  %-11s %d\n", cat, b.Counts[cat])
	}
}

// formatStates renders state counts as "current=3 stale=1", sorted by
// state name.
func formatStates(states map[string]int) string {
	if len(states) == 0 {
		return "-"
	}
	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, states[name])
	}
	return strings.Join(parts, " ")
}
