package quality

import (
	"regexp"
	"strconv"
	"strings"
)

var scoreLine = regexp.MustCompile(`(?i)^\**\s*score\s*\**\s*:\s*\**\s*(-?\d+)`)

// Parse reads a provider response of the form
//
//	SCORE: 7/10
//	SUMMARY: one sentence
//	ISSUES:
//	- issue
//	SUGGESTIONS:
//	- suggestion
//
// The score is returned as given; callers validate its range. A response
// without a score fails with ErrNoScore.
func Parse(text string) (Assessment, error) {
	var a Assessment
	found := false
	section := ""

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		upper := strings.ToUpper(line)

		switch {
		case !found && scoreLine.MatchString(line):
			m := scoreLine.FindStringSubmatch(line)
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			a.Score = n
			found = true
		case strings.HasPrefix(upper, "SUMMARY:"), strings.HasPrefix(upper, "RATIONALE:"):
			a.Rationale = strings.TrimSpace(line[strings.Index(line, ":")+1:])
			section = ""
		case strings.HasPrefix(upper, "ISSUES:"):
			section = "issues"
		case strings.HasPrefix(upper, "SUGGESTIONS:"):
			section = "suggestions"
		case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
			item := strings.TrimSpace(strings.TrimLeft(line, "-* "))
			switch {
			case section == "issues" && len(a.Issues) < MaxListItems:
				a.Issues = append(a.Issues, item)
			case section == "suggestions" && len(a.Suggestions) < MaxListItems:
				a.Suggestions = append(a.Suggestions, item)
			}
		}
	}

	if !found {
		return Assessment{}, ErrNoScore
	}
	return a, nil
}
