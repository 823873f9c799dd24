package dom

import (
	"testing"

	"golang.org/x/net/html"
)

func mustParse(t *testing.T, s string) *Document {
	t.Helper()
	d, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return d
}

func TestParseLenient(t *testing.T) {
	// Unclosed tags and bad nesting still produce a tree.
	d := mustParse(t, `<div><p>one<p>two</div>`)
	ps := FindAll(d.Root(), func(n *html.Node) bool { return IsElement(n, "p") })
	if len(ps) != 2 {
		t.Errorf("expected 2 p elements, got %d", len(ps))
	}

	// Empty input is fine too: html.Parse synthesizes html/head/body.
	d = mustParse(t, "")
	if d.Root() == nil {
		t.Fatal("expected a root for empty input")
	}
}

func TestText(t *testing.T) {
	d := mustParse(t, `<p>  Hello
		<strong> big </strong>

		world  </p>`)
	p := FindFirst(d.Root(), func(n *html.Node) bool { return IsElement(n, "p") })
	if got := Text(p); got != "Hello big world" {
		t.Errorf("Text = %q, want %q", got, "Hello big world")
	}
}

func TestRawTextPreservesNewlines(t *testing.T) {
	d := mustParse(t, "<pre><code><span>line one</span>\n<span>line two</span>\n\nline four</code></pre>")
	code := FindFirst(d.Root(), func(n *html.Node) bool { return IsElement(n, "code") })
	want := "line one\nline two\n\nline four"
	if got := RawText(code); got != want {
		t.Errorf("RawText = %q, want %q", got, want)
	}
}

func TestClassHelpers(t *testing.T) {
	d := mustParse(t, `<div class="rounded-xl bg-bg-300 p-3"></div>`)
	div := FindFirst(d.Root(), func(n *html.Node) bool { return IsElement(n, "div") })

	if !HasClass(div, "rounded-xl") {
		t.Error("expected HasClass rounded-xl")
	}
	if HasClass(div, "rounded") {
		t.Error("token match must be exact, not substring")
	}
	if !HasClasses(div, "rounded-xl", "bg-bg-300") {
		t.Error("expected class set match")
	}
	if HasClasses(div, "rounded-xl", "missing") {
		t.Error("expected class set miss")
	}
	if HasClasses(div) {
		t.Error("empty signature must never match")
	}
}

func TestRankDocumentOrder(t *testing.T) {
	d := mustParse(t, `<div id="a"><div id="b"></div></div><div id="c"><span id="d"></span></div>`)

	byID := func(id string) *html.Node {
		return FindFirst(d.Root(), func(n *html.Node) bool { return Attr(n, "id") == id })
	}
	a, b, c, e := byID("a"), byID("b"), byID("c"), byID("d")

	if !(d.Rank(a) < d.Rank(b) && d.Rank(b) < d.Rank(c) && d.Rank(c) < d.Rank(e)) {
		t.Errorf("ranks not in document order: a=%d b=%d c=%d d=%d",
			d.Rank(a), d.Rank(b), d.Rank(c), d.Rank(e))
	}

	foreign := &html.Node{Type: html.ElementNode, Data: "div"}
	if d.Rank(foreign) != -1 {
		t.Errorf("foreign node should rank -1, got %d", d.Rank(foreign))
	}
}

func TestFindAllOrder(t *testing.T) {
	d := mustParse(t, `<ul><li>1</li><li>2</li><li>3</li></ul>`)
	lis := FindAll(d.Root(), func(n *html.Node) bool { return IsElement(n, "li") })
	if len(lis) != 3 {
		t.Fatalf("expected 3 li, got %d", len(lis))
	}
	for i, li := range lis[1:] {
		if d.Rank(lis[i]) >= d.Rank(li) {
			t.Error("FindAll results not in document order")
		}
	}
}
