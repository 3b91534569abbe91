package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/randalmurphal/proref"
	prerrors "github.com/randalmurphal/proref/errors"
)

// report prints a batch and records its exit code.
func (c *cli) report(b *proref.BatchResult) {
	c.printBatch(b)
	c.record(b.ExitCode())
}

func (c *cli) printBatch(b *proref.BatchResult) {
	out := c.stdout
	if b.Err != nil {
		fmt.Fprintf(out, "%s: failed\n", b.Stage)
		fmt.Fprintf(c.stderr, "  %v\n", prerrors.Render(b.Err))
		return
	}
	fmt.Fprintln(out, b.Summary())
	for _, f := range b.Failures() {
		fmt.Fprintf(out, "  %s: %s\n", f.TicketID, failureText(f))
	}
}

func failureText(r proref.TicketResult) string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return r.Detail
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
