package jira

import (
	"fmt"
	"regexp"
	"strings"
)

// Jira Server and Data Center (API v2) store rich text as Wiki Markup.
// Descriptions are read through WikiToMarkdown and comments are written
// through MarkdownToWiki.

var (
	mdCodeBlock   = regexp.MustCompile("(?s)```(\\w*)\\n(.*?)\\n```")
	mdBold        = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	mdStrike      = regexp.MustCompile(`~~([^~]+)~~`)
	mdInlineCode  = regexp.MustCompile("`([^`]+)`")
	mdLink        = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	mdBullet      = regexp.MustCompile(`(?m)^- (.+)$`)
	mdNumbered    = regexp.MustCompile(`(?m)^\d+\. (.+)$`)
	mdRule        = regexp.MustCompile(`(?m)^---+$`)
	wikiCodeBlock = regexp.MustCompile(`(?s)\{(?:code|noformat)(?::(\w+))?\}(.*?)\{(?:code|noformat)\}`)
	wikiQuote     = regexp.MustCompile(`(?s)\{quote\}(.*?)\{quote\}`)
	wikiMonospace = regexp.MustCompile(`\{\{([^}]+)\}\}`)
	wikiBold      = regexp.MustCompile(`\*([^*\n]+)\*`)
	wikiLink      = regexp.MustCompile(`\[([^|\]]+)\|([^\]]+)\]`)
	wikiBullet    = regexp.MustCompile(`(?m)^\*+ (.+)$`)
	wikiRule      = regexp.MustCompile(`(?m)^----+$`)
	mdHeadings    [7]*regexp.Regexp
	wikiHeadings  [7]*regexp.Regexp
)

func init() {
	for i := 1; i <= 6; i++ {
		mdHeadings[i] = regexp.MustCompile(`(?m)^` + strings.Repeat("#", i) + ` (.+)$`)
		wikiHeadings[i] = regexp.MustCompile(fmt.Sprintf(`(?m)^h%d\. (.+)$`, i))
	}
}

// MarkdownToWiki converts Markdown to Jira Wiki Markup.
func MarkdownToWiki(markdown string) string {
	result := mdCodeBlock.ReplaceAllStringFunc(markdown, func(s string) string {
		m := mdCodeBlock.FindStringSubmatch(s)
		if m[1] != "" {
			return "{code:" + m[1] + "}\n" + m[2] + "\n{code}"
		}
		return "{code}\n" + m[2] + "\n{code}"
	})

	for i := 6; i >= 1; i-- {
		result = mdHeadings[i].ReplaceAllString(result, fmt.Sprintf("h%d. $1", i))
	}
	result = mdBold.ReplaceAllString(result, `*$1*`)
	result = mdStrike.ReplaceAllString(result, `-$1-`)
	result = mdInlineCode.ReplaceAllString(result, `{{$1}}`)
	result = mdLink.ReplaceAllString(result, `[$1|$2]`)
	result = mdBullet.ReplaceAllString(result, `* $1`)
	result = mdNumbered.ReplaceAllString(result, `# $1`)
	return mdRule.ReplaceAllString(result, `----`)
}

// WikiToMarkdown converts Jira Wiki Markup to Markdown.
func WikiToMarkdown(wiki string) string {
	result := wikiCodeBlock.ReplaceAllStringFunc(wiki, func(s string) string {
		m := wikiCodeBlock.FindStringSubmatch(s)
		return "```" + m[1] + "\n" + strings.Trim(m[2], "\n") + "\n```"
	})

	result = wikiQuote.ReplaceAllStringFunc(result, func(s string) string {
		m := wikiQuote.FindStringSubmatch(s)
		lines := strings.Split(strings.Trim(m[1], "\n"), "\n")
		for i, line := range lines {
			lines[i] = "> " + line
		}
		return strings.Join(lines, "\n")
	})

	// Numbered lists before headings so "# item" is not read as a heading.
	lines := strings.Split(result, "\n")
	counter := 0
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "# "):
			counter++
			lines[i] = fmt.Sprintf("%d. %s", counter, strings.TrimPrefix(line, "# "))
		case strings.TrimSpace(line) == "":
			counter = 0
		}
	}
	result = strings.Join(lines, "\n")

	for i := 1; i <= 6; i++ {
		result = wikiHeadings[i].ReplaceAllString(result, strings.Repeat("#", i)+` $1`)
	}
	result = wikiMonospace.ReplaceAllString(result, "`$1`")

	lines = strings.Split(result, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "* ") {
			continue
		}
		lines[i] = wikiBold.ReplaceAllString(line, `**$1**`)
	}
	result = strings.Join(lines, "\n")

	result = wikiLink.ReplaceAllString(result, `[$1]($2)`)
	result = wikiBullet.ReplaceAllString(result, `- $1`)
	return wikiRule.ReplaceAllString(result, `---`)
}
