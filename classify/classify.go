// Package classify labels DOM nodes with their conversational role.
// Share pages carry no semantic markup contract, so each category is
// decided by a prioritized battery of heuristics: attribute sentinels
// first, styled-wrapper class signatures next, then class-token
// substrings and visible text prefixes. First match wins.
package classify

import (
	"strings"

	"golang.org/x/net/html"

	"clshare/dom"
)

// Label is the semantic category of a subtree root.
type Label int

const (
	Irrelevant Label = iota
	UserTurn
	AssistantTurn
	Reasoning
	MainAnswer
	CodeBlock
)

func (l Label) String() string {
	switch l {
	case UserTurn:
		return "user-turn"
	case AssistantTurn:
		return "assistant-turn"
	case Reasoning:
		return "reasoning"
	case MainAnswer:
		return "main-answer"
	case CodeBlock:
		return "code-block"
	default:
		return "irrelevant"
	}
}

// Attribute sentinels and class signatures observed on claude.ai share
// pages. Signatures are token sets: they only identify a container when
// every token is present together.
const (
	userSentinelAttr  = "data-testid"
	userSentinelValue = "user-message"
	streamingAttr     = "data-is-streaming"
	responseBodyClass = "font-claude-response"
	codeBlockClass    = "code-block__code"
)

var (
	userWrapperSig = []string{"rounded-xl", "bg-bg-300"}
	reasoningSig   = []string{"grid-cols-1", "p-3", "pt-0", "pr-8"}
	mainAnswerSig  = []string{"grid-cols-1", "gap-2.5"}
	// The padding tokens that separate a reasoning grid from the main
	// answer grid. The main answer must carry none of them.
	reasoningOnlyTokens = []string{"p-3", "pt-0", "pr-8"}
)

// Rule is one prioritized turn heuristic: a named predicate and the
// label it assigns.
type Rule struct {
	Name  string
	Label Label
	Match func(n *html.Node) bool
}

// TurnRules is the turn-classification battery, highest confidence
// first. Evaluation order is the contract: attribute sentinels beat
// wrapper signatures beat class substrings beat text prefixes.
var TurnRules = []Rule{
	{"user-sentinel", UserTurn, isUserSentinel},
	{"user-wrapper", UserTurn, isUserWrapper},
	{"streaming-complete", AssistantTurn, isStreamingComplete},
	{"user-class-token", UserTurn, hasRoleClassToken("user-message", "human-message")},
	{"assistant-class-token", AssistantTurn, hasRoleClassToken("claude-message", "assistant-message")},
	{"human-text-prefix", UserTurn, hasTextPrefix("human:", "user:", "me:")},
	{"assistant-text-prefix", AssistantTurn, hasTextPrefix("claude:", "assistant:", "ai:")},
}

// Verdict is the result of running the turn battery over a node.
type Verdict struct {
	Label Label
	Rule  string
	// Conflict names a lower-priority rule that assigned the opposite
	// role. A turn matching both roles is a defect in the heuristics;
	// the higher-priority verdict stands and the caller logs this.
	Conflict string
}

// Turn classifies a candidate turn container. Classification never
// fails: a node matching no rule is Irrelevant.
func Turn(n *html.Node) Verdict {
	v := Verdict{Label: Irrelevant}
	for _, r := range TurnRules {
		if !r.Match(n) {
			continue
		}
		if v.Label == Irrelevant {
			v.Label = r.Label
			v.Rule = r.Name
		} else if v.Label != r.Label && v.Conflict == "" {
			v.Conflict = r.Name
		}
	}
	return v
}

// FallbackLabel assigns roles by position parity when no structural
// signal matched anywhere in the document. Human speaks first.
func FallbackLabel(position int) Label {
	if position%2 == 0 {
		return UserTurn
	}
	return AssistantTurn
}

func isUserSentinel(n *html.Node) bool {
	return dom.Attr(n, userSentinelAttr) == userSentinelValue
}

// isUserWrapper matches the styled container that bounds a whole user
// turn: the wrapper signature plus a user-message sentinel somewhere
// below it. The signature alone is not enough; the same utility classes
// decorate unrelated panels.
func isUserWrapper(n *html.Node) bool {
	if !dom.HasClasses(n, userWrapperSig...) {
		return false
	}
	return dom.FindFirst(n, isUserSentinel) != nil
}

func isStreamingComplete(n *html.Node) bool {
	return dom.Attr(n, streamingAttr) == "false"
}

func hasRoleClassToken(substrings ...string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		for _, c := range dom.ClassList(n) {
			lc := strings.ToLower(c)
			for _, sub := range substrings {
				if strings.Contains(lc, sub) {
					return true
				}
			}
		}
		return false
	}
}

func hasTextPrefix(prefixes ...string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		text := strings.ToLower(dom.Text(n))
		for _, p := range prefixes {
			if strings.HasPrefix(text, p) {
				return true
			}
		}
		return false
	}
}

// UserSentinels returns every user-message sentinel in the subtree.
func UserSentinels(root *html.Node) []*html.Node {
	return dom.FindAll(root, isUserSentinel)
}

// CompletedResponses returns every completed assistant output container
// in the subtree.
func CompletedResponses(root *html.Node) []*html.Node {
	return dom.FindAll(root, isStreamingComplete)
}

// maxWrapperAscent bounds the walk from a sentinel up to its styled
// wrapper. Deeper than this and we're matching page chrome, not a turn.
const maxWrapperAscent = 10

// TurnContainer walks up from a user-message sentinel to the styled
// wrapper element that is the true turn boundary. Falls back to the
// sentinel itself when no wrapper is found within the ascent bound.
func TurnContainer(sentinel *html.Node) *html.Node {
	cur := sentinel
	for i := 0; i < maxWrapperAscent; i++ {
		cur = dom.Parent(cur)
		if cur == nil || cur.Type != html.ElementNode {
			break
		}
		if dom.HasClasses(cur, userWrapperSig...) {
			return cur
		}
	}
	return sentinel
}

// ResponseBody returns the font-claude-response child of an assistant
// turn container, or nil. Reasoning and main-answer grids live inside
// it.
func ResponseBody(container *html.Node) *html.Node {
	for _, c := range dom.Children(container) {
		if dom.HasClass(c, responseBodyClass) {
			return c
		}
	}
	return nil
}

// IsReasoningGrid matches the collapsible thinking-process section of
// an assistant turn: the grid signature plus all three padding tokens.
func IsReasoningGrid(n *html.Node) bool {
	return dom.HasClasses(n, reasoningSig...)
}

// IsMainAnswerGrid matches the final-answer section: the grid signature
// without any of the reasoning padding tokens. Reasoning is checked
// first by callers, so the two never both claim one node.
func IsMainAnswerGrid(n *html.Node) bool {
	if !dom.HasClasses(n, mainAnswerSig...) {
		return false
	}
	for _, t := range reasoningOnlyTokens {
		if dom.HasClass(n, t) {
			return false
		}
	}
	return true
}

// Inline code spans shorter than this, or without a line break, are not
// promoted to block-level code.
const minCodeBlockLen = 20

// IsCodeBlock reports whether n is a block-level code container: a pre
// with a nested code element, identified either by the known code-block
// class or, as fallback, by multi-line content of substantial length.
func IsCodeBlock(n *html.Node) bool {
	if !dom.IsElement(n, "pre") {
		return false
	}
	code := dom.FindFirst(n, func(c *html.Node) bool { return dom.IsElement(c, "code") })
	if code == nil {
		return false
	}
	if dom.HasClass(n, codeBlockClass) || dom.HasClass(code, codeBlockClass) {
		return true
	}
	text := dom.RawText(code)
	return len(text) >= minCodeBlockLen && strings.Contains(text, "\n")
}

// Substrings in a class or id attribute that mark page chrome rather
// than conversation content.
var chromeTokens = []string{
	"button", "nav", "header", "footer", "sidebar", "menu",
	"toolbar", "tooltip", "modal", "popup", "loading",
}

// IsUIChrome reports whether the element is page furniture: styling or
// id hints, or native form controls anywhere below it.
func IsUIChrome(n *html.Node) bool {
	hints := strings.ToLower(dom.Attr(n, "class") + " " + dom.Attr(n, "id"))
	for _, t := range chromeTokens {
		if strings.Contains(hints, t) {
			return true
		}
	}
	ctrl := dom.FindFirst(n, func(c *html.Node) bool {
		switch c.Data {
		case "input", "button", "select", "textarea":
			return true
		}
		return false
	})
	return ctrl != nil
}
