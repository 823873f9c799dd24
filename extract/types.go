// Package extract recovers an ordered conversation from the rendered
// HTML of a claude.ai share page and serializes it to markdown. The
// page is a minified single-page-app render with no semantic markup
// contract, so turn discovery and content formatting both lean on the
// classify package's heuristic battery.
package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidURL means the input failed the share-URL contract.
	ErrInvalidURL = errors.New("not a claude.ai share URL")
	// ErrMalformedMarkup means the parser could not build any tree.
	ErrMalformedMarkup = errors.New("unable to parse HTML")
	// ErrEmptyExtraction means parsing succeeded but no non-empty
	// turns were found. Soft failure: the Result still carries the
	// (turnless) conversation so callers can keep partial output.
	ErrEmptyExtraction = errors.New("no conversation turns found")
)

// Role identifies the speaker of a turn.
type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

// Display returns the role name used in rendered documents.
func (r Role) Display() string {
	if r == RoleAssistant {
		return "Claude"
	}
	return "Human"
}

// BlockKind discriminates the structured-text block union.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockCode
	BlockList
	BlockTable
	BlockQuote
	BlockReasoning
)

// Block is one unit of structured text within a turn.
type Block struct {
	Kind BlockKind

	Text  string // paragraph, heading, blockquote (quote lines joined by \n)
	Level int    // heading level, 1-6

	Lang string // code language tag, possibly empty
	Code string // raw code text, line breaks preserved

	Ordered bool     // list ordering
	Items   []string // list item texts

	Rows   [][]string // table rows of cell texts
	Header bool       // first table row is a header row

	Children []Block // reasoning section content
}

// Markdown renders the block to its textual form.
func (b Block) Markdown() string {
	switch b.Kind {
	case BlockHeading:
		level := b.Level
		if level < 1 {
			level = 1
		} else if level > 6 {
			level = 6
		}
		return strings.Repeat("#", level) + " " + b.Text
	case BlockCode:
		return "```" + b.Lang + "\n" + b.Code + "\n```"
	case BlockList:
		var lines []string
		for i, item := range b.Items {
			if b.Ordered {
				lines = append(lines, strconv.Itoa(i+1)+". "+item)
			} else {
				lines = append(lines, "- "+item)
			}
		}
		return strings.Join(lines, "\n")
	case BlockTable:
		var lines []string
		for i, row := range b.Rows {
			lines = append(lines, "| "+strings.Join(row, " | ")+" |")
			if i == 0 && b.Header {
				seps := make([]string, len(row))
				for j := range seps {
					seps[j] = "---"
				}
				lines = append(lines, "| "+strings.Join(seps, " | ")+" |")
			}
		}
		return strings.Join(lines, "\n")
	case BlockQuote:
		var lines []string
		for _, line := range strings.Split(b.Text, "\n") {
			lines = append(lines, "> "+line)
		}
		return strings.Join(lines, "\n")
	case BlockReasoning:
		parts := []string{"**Thinking Process:**"}
		for _, c := range b.Children {
			parts = append(parts, c.Markdown())
		}
		return strings.Join(parts, "\n\n")
	default:
		return b.Text
	}
}

// Turn is one conversational exchange unit. Ordinals are zero-based,
// assigned in document order, and never mutated afterward.
type Turn struct {
	Role    Role
	Blocks  []Block
	Ordinal int
}

// Markdown renders the turn's content, one blank line between blocks.
func (t Turn) Markdown() string {
	parts := make([]string, 0, len(t.Blocks))
	for _, b := range t.Blocks {
		parts = append(parts, b.Markdown())
	}
	return strings.Join(parts, "\n\n")
}

// Conversation is the sole output of a successful extraction.
// Immutable after construction.
type Conversation struct {
	ShareID  string
	Title    string
	URL      string
	Date     *time.Time // share pages carry no reliable date; usually nil
	Turns    []Turn
	ParsedAt time.Time
}

// Metadata is the JSON projection persisted next to the rendered
// document.
type Metadata struct {
	ShareID      string  `json:"share_id"`
	Title        string  `json:"title"`
	URL          string  `json:"url"`
	Date         *string `json:"date"`
	MessageCount int     `json:"message_count"`
	ParsedAt     string  `json:"parsed_at"`
}

// Metadata builds the JSON projection of the conversation.
func (c *Conversation) Metadata() Metadata {
	m := Metadata{
		ShareID:      c.ShareID,
		Title:        c.Title,
		URL:          c.URL,
		MessageCount: len(c.Turns),
		ParsedAt:     c.ParsedAt.Format(time.RFC3339),
	}
	if c.Date != nil {
		s := c.Date.Format(time.RFC3339)
		m.Date = &s
	}
	return m
}

// Markdown renders the full conversation document: title, a details
// section, then each turn under a speaker header, with one blank line
// between blocks and between turns.
func (c *Conversation) Markdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", c.Title)
	sb.WriteString("## Conversation Details\n\n")
	fmt.Fprintf(&sb, "- **URL**: %s\n", c.URL)
	fmt.Fprintf(&sb, "- **Share ID**: %s\n", c.ShareID)
	if c.Date != nil {
		fmt.Fprintf(&sb, "- **Date**: %s\n", c.Date.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	fmt.Fprintf(&sb, "- **Messages**: %d\n", len(c.Turns))
	fmt.Fprintf(&sb, "- **Parsed**: %s\n", c.ParsedAt.Format(time.RFC3339))
	sb.WriteString("\n## Conversation\n")
	for _, t := range c.Turns {
		fmt.Fprintf(&sb, "\n# %s\n\n%s\n", t.Role.Display(), t.Markdown())
	}
	return sb.String()
}

// Result is the structured outcome of one extraction. The extractor
// never panics past its boundary: every internal fault lands in Err.
type Result struct {
	Success      bool
	Conversation *Conversation
	Err          error
}
