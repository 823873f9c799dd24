// Package dom wraps a parsed HTML tree and exposes the traversal
// primitives the extractor needs: class and attribute lookup, normalized
// text extraction, and document ordering. Class names on claude.ai share
// pages are utility-CSS tokens with no semantic contract, so everything
// here works on token sets rather than whole class strings.
package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Document is an immutable view over a parsed HTML tree. Nodes never
// outlive their Document.
type Document struct {
	root *html.Node
	rank map[*html.Node]int
}

// Parse builds a Document from raw HTML text. The underlying parser is
// lenient: unclosed tags and invalid nesting still produce a tree, so an
// error here means no tree could be built at all.
func Parse(htmlText string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return nil, err
	}
	d := &Document{
		root: root,
		rank: make(map[*html.Node]int),
	}
	// Pre-order traversal index gives a total document order for free,
	// so container sorting never depends on sibling-count heuristics.
	i := 0
	Walk(root, func(n *html.Node) bool {
		d.rank[n] = i
		i++
		return true
	})
	return d, nil
}

// Root returns the document root node.
func (d *Document) Root() *html.Node { return d.root }

// Rank returns the node's position in a depth-first, left-to-right
// traversal of the document. Lower ranks come earlier. Nodes not
// belonging to this document rank -1.
func (d *Document) Rank(n *html.Node) int {
	if r, ok := d.rank[n]; ok {
		return r
	}
	return -1
}

// Walk visits n and its descendants depth-first, left to right. The
// visitor returns false to skip a node's subtree.
func Walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, visit)
	}
}

// Children returns the element children of n, in order.
func Children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// FindAll returns every element in n's subtree (including n itself)
// matching pred, in document order.
func FindAll(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	Walk(n, func(c *html.Node) bool {
		if c.Type == html.ElementNode && pred(c) {
			out = append(out, c)
		}
		return true
	})
	return out
}

// FindFirst returns the first element in n's subtree matching pred,
// or nil.
func FindFirst(n *html.Node, pred func(*html.Node) bool) *html.Node {
	var found *html.Node
	Walk(n, func(c *html.Node) bool {
		if found != nil {
			return false
		}
		if c.Type == html.ElementNode && pred(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

// Parent returns n's parent element, or nil for the root.
func Parent(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	return n.Parent
}

// Attr returns the value of the named attribute, or "".
func Attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// ClassList returns the element's class attribute split into tokens.
func ClassList(n *html.Node) []string {
	raw := Attr(n, "class")
	if raw == "" {
		return nil
	}
	return strings.Fields(raw)
}

// HasClass reports whether the element carries the exact class token.
func HasClass(n *html.Node, token string) bool {
	for _, c := range ClassList(n) {
		if c == token {
			return true
		}
	}
	return false
}

// HasClasses reports whether the element carries every one of the given
// class tokens. Signatures on share pages are only reliable as a set:
// individual tokens appear all over the page.
func HasClasses(n *html.Node, tokens ...string) bool {
	if len(tokens) == 0 {
		return false
	}
	set := make(map[string]bool, len(tokens))
	for _, c := range ClassList(n) {
		set[c] = true
	}
	for _, t := range tokens {
		if !set[t] {
			return false
		}
	}
	return true
}

// IsElement reports whether n is an element with the given tag name.
func IsElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == tag
}

// Text returns the concatenated descendant text of n with runs of
// whitespace collapsed to single spaces and the ends trimmed.
func Text(n *html.Node) string {
	var sb strings.Builder
	Walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return strings.Join(strings.Fields(sb.String()), " ")
}

// RawText returns the concatenated descendant text of n without
// whitespace normalization. Inline styling wrappers (spans) contribute
// only their text, so this is how code content is lifted out of
// highlighted markup with line breaks intact.
func RawText(n *html.Node) string {
	var sb strings.Builder
	Walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return sb.String()
}
