package jira

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ADFDocument represents an Atlassian Document Format document, the rich
// text format of Jira Cloud API v3.
type ADFDocument struct {
	Version int       `json:"version"` // Always 1
	Type    string    `json:"type"`    // Always "doc"
	Content []ADFNode `json:"content"`
}

// ADFNode represents a node in an ADF document.
type ADFNode struct {
	Type    string         `json:"type"`
	Content []ADFNode      `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []ADFMark      `json:"marks,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// ADFMark represents formatting applied to text.
type ADFMark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// ADF node types
const (
	ADFNodeDoc         = "doc"
	ADFNodeParagraph   = "paragraph"
	ADFNodeText        = "text"
	ADFNodeHardBreak   = "hardBreak"
	ADFNodeHeading     = "heading"
	ADFNodeBulletList  = "bulletList"
	ADFNodeOrderedList = "orderedList"
	ADFNodeListItem    = "listItem"
	ADFNodeCodeBlock   = "codeBlock"
	ADFNodeBlockquote  = "blockquote"
	ADFNodeRule        = "rule"
	ADFNodeMention     = "mention"
	ADFNodeEmoji       = "emoji"
	ADFNodeInlineCard  = "inlineCard"
)

// ADF mark types
const (
	ADFMarkStrong = "strong"
	ADFMarkEm     = "em"
	ADFMarkStrike = "strike"
	ADFMarkCode   = "code"
	ADFMarkLink   = "link"
)

// NewADFDocument creates a new empty ADF document.
func NewADFDocument() *ADFDocument {
	return &ADFDocument{
		Version: 1,
		Type:    ADFNodeDoc,
		Content: []ADFNode{},
	}
}

// Validate validates the ADF document structure.
func (d *ADFDocument) Validate() error {
	if d.Version != 1 {
		return ErrADFVersionOnly
	}
	if d.Type != ADFNodeDoc {
		return ErrADFTypeInvalid
	}
	return nil
}

// AddParagraph adds a paragraph. Newlines in text become hard breaks.
func (d *ADFDocument) AddParagraph(text string) {
	var content []ADFNode
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			content = append(content, parseInline(line)...)
		}
		if i < len(lines)-1 {
			content = append(content, ADFNode{Type: ADFNodeHardBreak})
		}
	}
	if len(content) == 0 {
		return
	}
	d.Content = append(d.Content, ADFNode{Type: ADFNodeParagraph, Content: content})
}

// AddHeading adds a heading. level is clamped to [1,6].
func (d *ADFDocument) AddHeading(level int, text string) {
	level = min(max(level, 1), 6)
	d.Content = append(d.Content, ADFNode{
		Type:    ADFNodeHeading,
		Attrs:   map[string]any{"level": level},
		Content: []ADFNode{{Type: ADFNodeText, Text: text}},
	})
}

// AddCodeBlock adds a code block.
func (d *ADFDocument) AddCodeBlock(code, language string) {
	node := ADFNode{Type: ADFNodeCodeBlock}
	if language != "" {
		node.Attrs = map[string]any{"language": language}
	}
	if code != "" {
		node.Content = []ADFNode{{Type: ADFNodeText, Text: code}}
	}
	d.Content = append(d.Content, node)
}

// AddBulletList adds a bullet list.
func (d *ADFDocument) AddBulletList(items []string) {
	d.addList(ADFNodeBulletList, items)
}

// AddOrderedList adds an ordered list.
func (d *ADFDocument) AddOrderedList(items []string) {
	d.addList(ADFNodeOrderedList, items)
}

func (d *ADFDocument) addList(kind string, items []string) {
	if len(items) == 0 {
		return
	}
	list := ADFNode{Type: kind}
	for _, item := range items {
		list.Content = append(list.Content, ADFNode{
			Type:    ADFNodeListItem,
			Content: []ADFNode{{Type: ADFNodeParagraph, Content: parseInline(item)}},
		})
	}
	d.Content = append(d.Content, list)
}

// AddRule adds a horizontal rule.
func (d *ADFDocument) AddRule() {
	d.Content = append(d.Content, ADFNode{Type: ADFNodeRule})
}

var (
	headingLine = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	bulletLine  = regexp.MustCompile(`^\s*[-*+]\s+(.*)$`)
	orderedLine = regexp.MustCompile(`^\s*\d+[.)]\s+(.*)$`)
	ruleLine    = regexp.MustCompile(`^\s*(?:-{3,}|\*{3,}|_{3,})\s*$`)
	inlineMark  = regexp.MustCompile("\\*\\*([^*]+)\\*\\*|`([^`]+)`")
)

// MarkdownToADF converts the Markdown produced for pipeline comments to an
// ADF document. It understands headings, rules, fenced code, bullet and
// numbered lists, bold and inline code. Consecutive plain lines form one
// paragraph joined by hard breaks.
func MarkdownToADF(markdown string) *ADFDocument {
	doc := NewADFDocument()
	lines := strings.Split(strings.ReplaceAll(markdown, "\r\n", "\n"), "\n")

	var para []string
	flush := func() {
		if len(para) > 0 {
			doc.AddParagraph(strings.Join(para, "\n"))
			para = nil
		}
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.TrimSpace(line) == "":
			flush()

		case strings.HasPrefix(strings.TrimSpace(line), "```"):
			flush()
			language := strings.TrimPrefix(strings.TrimSpace(line), "```")
			var code []string
			for i++; i < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[i]), "```"); i++ {
				code = append(code, lines[i])
			}
			doc.AddCodeBlock(strings.Join(code, "\n"), language)

		case ruleLine.MatchString(line):
			flush()
			doc.AddRule()

		case headingLine.MatchString(line):
			flush()
			m := headingLine.FindStringSubmatch(line)
			doc.AddHeading(len(m[1]), strings.TrimSpace(m[2]))

		case bulletLine.MatchString(line):
			flush()
			var items []string
			for ; i < len(lines) && bulletLine.MatchString(lines[i]); i++ {
				items = append(items, bulletLine.FindStringSubmatch(lines[i])[1])
			}
			i--
			doc.AddBulletList(items)

		case orderedLine.MatchString(line):
			flush()
			var items []string
			for ; i < len(lines) && orderedLine.MatchString(lines[i]); i++ {
				items = append(items, orderedLine.FindStringSubmatch(lines[i])[1])
			}
			i--
			doc.AddOrderedList(items)

		default:
			para = append(para, strings.TrimRight(line, " \t"))
		}
	}
	flush()
	return doc
}

// parseInline splits text into text nodes with strong and code marks.
func parseInline(text string) []ADFNode {
	var nodes []ADFNode
	last := 0
	for _, m := range inlineMark.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > last {
			nodes = append(nodes, ADFNode{Type: ADFNodeText, Text: text[last:m[0]]})
		}
		if m[2] >= 0 {
			nodes = append(nodes, ADFNode{Type: ADFNodeText, Text: text[m[2]:m[3]], Marks: []ADFMark{{Type: ADFMarkStrong}}})
		} else {
			nodes = append(nodes, ADFNode{Type: ADFNodeText, Text: text[m[4]:m[5]], Marks: []ADFMark{{Type: ADFMarkCode}}})
		}
		last = m[1]
	}
	if last < len(text) {
		nodes = append(nodes, ADFNode{Type: ADFNodeText, Text: text[last:]})
	}
	return nodes
}

// ADFToText renders a rich text field as plain Markdown-ish text. v is
// either an ADF document as decoded from JSON or a plain string, which is
// returned unchanged.
func ADFToText(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal adf: %w", err)
	}
	var doc ADFDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("unmarshal adf: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return "", err
	}

	var w strings.Builder
	for i := range doc.Content {
		blockToText(&w, &doc.Content[i])
	}
	return strings.TrimSpace(w.String()), nil
}

func blockToText(w *strings.Builder, node *ADFNode) {
	switch node.Type {
	case ADFNodeParagraph:
		inlineToText(w, node.Content)
		w.WriteString("\n\n")

	case ADFNodeHeading:
		level := 1
		if l, ok := node.Attrs["level"].(float64); ok {
			level = int(l)
		}
		w.WriteString(strings.Repeat("#", level) + " ")
		inlineToText(w, node.Content)
		w.WriteString("\n\n")

	case ADFNodeCodeBlock:
		w.WriteString("```\n")
		inlineToText(w, node.Content)
		w.WriteString("\n```\n\n")

	case ADFNodeBlockquote:
		var inner strings.Builder
		for i := range node.Content {
			blockToText(&inner, &node.Content[i])
		}
		for _, line := range strings.Split(strings.TrimSpace(inner.String()), "\n") {
			w.WriteString("> " + line + "\n")
		}
		w.WriteString("\n")

	case ADFNodeBulletList, ADFNodeOrderedList:
		for i, item := range node.Content {
			if node.Type == ADFNodeOrderedList {
				fmt.Fprintf(w, "%d. ", i+1)
			} else {
				w.WriteString("- ")
			}
			for j, c := range item.Content {
				if j > 0 {
					w.WriteString(" ")
				}
				inlineToText(w, c.Content)
			}
			w.WriteString("\n")
		}
		w.WriteString("\n")

	case ADFNodeRule:
		w.WriteString("---\n\n")

	case ADFNodeText:
		w.WriteString(node.Text)

	default:
		// Panels, tables and other containers: keep their text.
		for i := range node.Content {
			blockToText(w, &node.Content[i])
		}
	}
}

func inlineToText(w *strings.Builder, nodes []ADFNode) {
	for i := range nodes {
		node := &nodes[i]
		switch node.Type {
		case ADFNodeText:
			w.WriteString(node.Text)
		case ADFNodeHardBreak:
			w.WriteString("\n")
		case ADFNodeMention:
			if text, ok := node.Attrs["text"].(string); ok {
				w.WriteString(text)
			} else if id, ok := node.Attrs["id"].(string); ok {
				w.WriteString("@" + id)
			}
		case ADFNodeEmoji:
			if shortName, ok := node.Attrs["shortName"].(string); ok {
				w.WriteString(shortName)
			}
		case ADFNodeInlineCard:
			if url, ok := node.Attrs["url"].(string); ok {
				w.WriteString(url)
			}
		default:
			inlineToText(w, node.Content)
		}
	}
}
