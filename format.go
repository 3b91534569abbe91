package proref

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/randalmurphal/proref/ticket"
)

var (
	testCaseStart = regexp.MustCompile(`(?m)^\s*\**TC-\d+\**\s*:`)
	listMarker    = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+`)
)

// ParseItems splits generated content into its individual questions or
// test cases.
//
// Questions are one per non-empty line with list markers removed. Test
// cases start at a "TC-n:" line and run until the next one; content with
// no such line is a single item.
func ParseItems(kind ticket.Kind, content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if kind == ticket.KindTestCases {
		return parseTestCases(content)
	}

	var items []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if line != "" {
			items = append(items, line)
		}
	}
	return items
}

func parseTestCases(content string) []string {
	starts := testCaseStart.FindAllStringIndex(content, -1)
	if len(starts) == 0 {
		return []string{content}
	}

	items := make([]string, 0, len(starts))
	for i, loc := range starts {
		end := len(content)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		block := strings.TrimSpace(content[loc[0]:end])
		block = strings.TrimSpace(strings.TrimSuffix(block, "---"))
		if block != "" {
			items = append(items, block)
		}
	}
	return items
}

// FormatComment renders an artifact as the Markdown comment posted to the
// ticket's source.
func FormatComment(a *ticket.Artifact) string {
	items := a.Items
	if len(items) == 0 {
		items = ParseItems(a.Kind, a.Content)
	}

	var b strings.Builder
	switch a.Kind {
	case ticket.KindQuestions:
		b.WriteString("### Generated Refinement Questions\n\n")
		for _, q := range items {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	case ticket.KindTestCases:
		b.WriteString("### Generated Test Cases\n")
		for i, tc := range items {
			if i > 0 {
				b.WriteString("\n---\n")
			}
			title, body, _ := strings.Cut(tc, "\n")
			fmt.Fprintf(&b, "\n#### %s\n", strings.ReplaceAll(strings.TrimSpace(title), "**", ""))
			if body = strings.TrimSpace(body); body != "" {
				fmt.Fprintf(&b, "\n%s\n", body)
			}
		}
	default:
		fmt.Fprintf(&b, "### Generated %s\n\n%s\n", a.Kind.Label(), a.Content)
	}
	return b.String()
}
