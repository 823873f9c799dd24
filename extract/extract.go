package extract

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"clshare/dom"
	"clshare/shareurl"
)

// Extractor turns raw share-page HTML into a Conversation. It holds no
// state between calls and is safe to use concurrently across
// independent documents.
type Extractor struct {
	log *slog.Logger
}

// New creates an extractor. A nil logger discards diagnostics; the
// extraction itself never writes anywhere else.
func New(log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Extractor{log: log}
}

// Extract parses one share page and returns the structured result.
// Failures never escape as panics or errors: they land in Result.Err,
// with Result.Success false. An extraction that parses but finds no
// turns still carries the (empty) conversation so callers can keep
// partial output.
func (e *Extractor) Extract(htmlText, rawURL string) Result {
	shareID := shareurl.ExtractID(rawURL)
	if shareID == "" {
		return Result{Err: fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)}
	}

	doc, err := dom.Parse(htmlText)
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %v", ErrMalformedMarkup, err)}
	}

	conv := &Conversation{
		ShareID:  shareID,
		Title:    extractTitle(doc),
		URL:      rawURL,
		ParsedAt: time.Now(),
	}
	conv.Turns = e.locateTurns(doc, conversationRoot(doc))

	if len(conv.Turns) == 0 {
		return Result{Conversation: conv, Err: ErrEmptyExtraction}
	}
	return Result{Success: true, Conversation: conv}
}

// Title candidates, tried in order. The current UI keeps the title in
// a truncate-classed div; the document <title> and the rest are older
// layouts.
var titleSelectors = []string{
	".truncate",
	"title",
	"h1",
	`[data-testid="chat-title"]`,
	".chat-title",
	".conversation-title",
}

const defaultTitle = "Untitled Conversation"

var titleSuffix = regexp.MustCompile(`\s*\|\s*Claude.*$`)

func extractTitle(doc *dom.Document) string {
	gq := goquery.NewDocumentFromNode(doc.Root())
	for _, sel := range titleSelectors {
		s := gq.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		title := strings.Join(strings.Fields(s.Text()), " ")
		title = strings.TrimSpace(titleSuffix.ReplaceAllString(title, ""))
		if title != "" && title != "Claude" {
			return title
		}
	}
	return defaultTitle
}
