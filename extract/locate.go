package extract

import (
	"sort"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"clshare/classify"
	"clshare/dom"
)

// Conversation root candidates, tried in order. The whole document is
// the last resort.
var rootSelectors = []string{
	"main",
	`[role="main"]`,
	".conversation",
	".chat-container",
	"#chat",
	".messages-container",
}

func conversationRoot(doc *dom.Document) *html.Node {
	gq := goquery.NewDocumentFromNode(doc.Root())
	for _, sel := range rootSelectors {
		if s := gq.Find(sel).First(); s.Length() > 0 {
			return s.Nodes[0]
		}
	}
	return doc.Root()
}

// located is a discovered turn container before rendering.
type located struct {
	node *html.Node
	role Role
}

// locateTurns produces the ordered turn sequence for a document:
// structural discovery, document-order sort, then rendering with empty
// turns dropped. Ordinals are assigned after the drop, so they are
// always 0..len-1 with no gaps.
func (e *Extractor) locateTurns(doc *dom.Document, root *html.Node) []Turn {
	found := e.collectContainers(root)
	if len(found) == 0 {
		found = e.alternatingFallback(root)
	}

	// Pre-order rank gives a total document order; discovery order
	// breaks the (defect-condition) ties.
	sort.SliceStable(found, func(i, j int) bool {
		return doc.Rank(found[i].node) < doc.Rank(found[j].node)
	})

	var turns []Turn
	for _, l := range found {
		if v := classify.Turn(l.node); v.Conflict != "" {
			e.log.Warn("turn matched both roles, keeping higher-priority verdict",
				"kept", v.Rule, "conflicting", v.Conflict)
		}

		var blocks []Block
		if l.role == RoleHuman {
			blocks = renderUserTurn(l.node)
		} else {
			blocks = renderAssistantTurn(l.node)
		}
		if len(blocks) == 0 {
			continue
		}
		turns = append(turns, Turn{Role: l.role, Blocks: blocks, Ordinal: len(turns)})
	}
	return turns
}

// collectContainers gathers turn containers through the structural
// heuristics: user-message sentinels promoted to their styled wrappers,
// and completed assistant streaming containers. Containers reachable
// through more than one heuristic are de-duplicated by identity.
func (e *Extractor) collectContainers(root *html.Node) []located {
	seen := make(map[*html.Node]bool)
	var found []located
	add := func(n *html.Node, role Role) {
		if n == nil || seen[n] {
			return
		}
		seen[n] = true
		found = append(found, located{node: n, role: role})
	}

	for _, sentinel := range classify.UserSentinels(root) {
		add(classify.TurnContainer(sentinel), RoleHuman)
	}
	for _, resp := range classify.CompletedResponses(root) {
		add(resp, RoleAssistant)
	}
	return found
}

// Text shorter than this is too thin to be a conversation block in the
// whole-document fallback scan.
const minFallbackTextLen = 20

// alternatingFallback degrades to scanning the document for substantial
// text-bearing elements when no structural signal matched anywhere.
// Roles come from the classifier where it has an opinion (class tokens,
// speaker-label text prefixes) and from position parity otherwise.
func (e *Extractor) alternatingFallback(root *html.Node) []located {
	candidates := dom.FindAll(root, func(n *html.Node) bool {
		switch n.Data {
		case "div", "p", "section", "article":
		default:
			return false
		}
		if len(dom.Text(n)) <= minFallbackTextLen {
			return false
		}
		return !classify.IsUIChrome(n)
	})

	// Keep only the deepest qualifying elements; ancestors carry the
	// same text and would double-count every block.
	qualifies := make(map[*html.Node]bool, len(candidates))
	for _, n := range candidates {
		qualifies[n] = true
	}
	var found []located
	for _, n := range candidates {
		hasInner := dom.FindFirst(n, func(c *html.Node) bool {
			return c != n && qualifies[c]
		})
		if hasInner != nil {
			continue
		}

		role := RoleHuman
		switch v := classify.Turn(n); v.Label {
		case classify.UserTurn:
			role = RoleHuman
		case classify.AssistantTurn:
			role = RoleAssistant
		default:
			if classify.FallbackLabel(len(found)) == classify.AssistantTurn {
				role = RoleAssistant
			}
		}
		found = append(found, located{node: n, role: role})
	}

	if len(found) > 0 {
		e.log.Debug("no structural turn signals, used alternating fallback",
			"blocks", len(found))
	}
	return found
}
