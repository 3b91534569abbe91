package source

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var acHeading = regexp.MustCompile(`(?i)^(#{1,6})\s*acceptance criteria\s*:?\s*$`)

// splitBody separates an "Acceptance Criteria" section from the rest of an
// issue body. The section runs until the next heading of the same or a
// higher level.
func splitBody(body string) (description, criteria string) {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")

	start, level := -1, 0
	for i, line := range lines {
		if m := acHeading.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			start, level = i, len(m[1])
			break
		}
	}
	if start < 0 {
		return strings.TrimSpace(body), ""
	}

	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		if n := headingLevel(lines[i]); n > 0 && n <= level {
			end = i
			break
		}
	}

	rest := append(append([]string{}, lines[:start]...), lines[end:]...)
	return strings.TrimSpace(strings.Join(rest, "\n")), strings.TrimSpace(strings.Join(lines[start+1:end], "\n"))
}

func headingLevel(line string) int {
	line = strings.TrimSpace(line)
	n := len(line) - len(strings.TrimLeft(line, "#"))
	if n == 0 || n > 6 || len(line) == n || line[n] != ' ' {
		return 0
	}
	return n
}

// typeLabels map issue labels to ticket issue types.
var typeLabels = map[string]string{
	"bug":         "Bug",
	"story":       "Story",
	"user story":  "Story",
	"feature":     "Story",
	"enhancement": "Story",
	"task":        "Task",
	"chore":       "Task",
	"spike":       "Spike",
	"epic":        "Epic",
}

// issueType returns the type named by the first type label, else "Issue".
func issueType(labels []string) string {
	for _, l := range labels {
		name := strings.ToLower(strings.TrimSpace(l))
		name = strings.TrimPrefix(name, "type::")
		name = strings.TrimPrefix(name, "type:")
		if t, ok := typeLabels[strings.TrimSpace(name)]; ok {
			return t
		}
	}
	return "Issue"
}

// issueNumber parses "12", "#12" or "repo#12".
func issueNumber(id string) (int, error) {
	s := id
	if i := strings.LastIndex(s, "#"); i >= 0 {
		s = s[i+1:]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIssueID, id)
	}
	return n, nil
}

// ticketID names issue n of repo.
func ticketID(repo string, n int) string {
	return repo + "#" + strconv.Itoa(n)
}
