package extract

import (
	"strings"

	"golang.org/x/net/html"

	"clshare/classify"
	"clshare/dom"
)

// renderUserTurn renders a user turn as flat text. User messages are
// plain text on share pages; only the sentinel element's text counts,
// not the wrapper's edit/copy chrome.
func renderUserTurn(container *html.Node) []Block {
	src := container
	if s := classify.UserSentinels(container); len(s) > 0 {
		src = s[0]
	}
	text := dom.Text(src)
	if text == "" {
		return nil
	}
	return []Block{{Kind: BlockParagraph, Text: text}}
}

// renderAssistantTurn renders the reasoning section (if any) followed
// by the main answer, in that order. Turns without a recognizable
// response body fall back to rendering the container subtree directly.
func renderAssistantTurn(container *html.Node) []Block {
	target := container
	if body := classify.ResponseBody(container); body != nil {
		target = body
	}

	var blocks []Block
	if think := dom.FindFirst(target, classify.IsReasoningGrid); think != nil {
		if nested := renderBlocks(think); len(nested) > 0 {
			blocks = append(blocks, Block{Kind: BlockReasoning, Children: nested})
		}
	}
	if main := dom.FindFirst(target, classify.IsMainAnswerGrid); main != nil {
		blocks = append(blocks, renderBlocks(main)...)
	} else if len(blocks) == 0 {
		blocks = renderBlocks(target)
	}

	if len(blocks) == 0 {
		if text := dom.Text(container); text != "" {
			blocks = []Block{{Kind: BlockParagraph, Text: text}}
		}
	}
	return blocks
}

// renderBlocks converts a content container's element children into
// blocks, preserving document order. Blocks that format to nothing are
// dropped.
func renderBlocks(container *html.Node) []Block {
	var blocks []Block
	for _, child := range dom.Children(container) {
		if b, ok := formatElement(child); ok {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// formatElement dispatches one element to its block form by tag
// semantics. Unrecognized tags degrade to flattened text.
func formatElement(n *html.Node) (Block, bool) {
	switch n.Data {
	case "p":
		return paragraph(inlineText(n))

	case "h1", "h2", "h3", "h4", "h5", "h6":
		text := dom.Text(n)
		if text == "" {
			return Block{}, false
		}
		level := int(n.Data[1] - '0')
		return Block{Kind: BlockHeading, Level: level, Text: text}, true

	case "strong", "b":
		return paragraph(wrapNonEmpty("**", dom.Text(n)))

	case "em", "i":
		return paragraph(wrapNonEmpty("*", dom.Text(n)))

	case "code":
		return paragraph(wrapNonEmpty("`", dom.Text(n)))

	case "pre":
		return codeBlock(n)

	case "a":
		text := dom.Text(n)
		if href := dom.Attr(n, "href"); href != "" && text != "" {
			return paragraph("[" + text + "](" + href + ")")
		}
		return paragraph(text)

	case "ul":
		return listBlock(n, false)

	case "ol":
		return listBlock(n, true)

	case "blockquote":
		return quoteBlock(n)

	case "table":
		return tableBlock(n)

	case "div":
		// A generic container holding a code block delegates to the
		// code formatting; anything else flattens to text.
		if pre := dom.FindFirst(n, classify.IsCodeBlock); pre != nil {
			return codeBlock(pre)
		}
		return paragraph(dom.Text(n))

	default:
		return paragraph(dom.Text(n))
	}
}

func paragraph(text string) (Block, bool) {
	if text == "" {
		return Block{}, false
	}
	return Block{Kind: BlockParagraph, Text: text}, true
}

func wrapNonEmpty(marker, text string) string {
	if text == "" {
		return ""
	}
	return marker + text + marker
}

func listBlock(n *html.Node, ordered bool) (Block, bool) {
	var items []string
	for _, li := range dom.FindAll(n, func(c *html.Node) bool { return dom.IsElement(c, "li") }) {
		if text := inlineText(li); text != "" {
			items = append(items, text)
		}
	}
	if len(items) == 0 {
		return Block{}, false
	}
	return Block{Kind: BlockList, Ordered: ordered, Items: items}, true
}

func quoteBlock(n *html.Node) (Block, bool) {
	// Block children become separate quoted lines; a bare text quote
	// stays a single line.
	var lines []string
	for _, child := range dom.Children(n) {
		if text := dom.Text(child); text != "" {
			lines = append(lines, text)
		}
	}
	if len(lines) == 0 {
		if text := dom.Text(n); text != "" {
			lines = []string{text}
		}
	}
	if len(lines) == 0 {
		return Block{}, false
	}
	return Block{Kind: BlockQuote, Text: strings.Join(lines, "\n")}, true
}

func tableBlock(n *html.Node) (Block, bool) {
	var rows [][]string
	header := false
	for i, tr := range dom.FindAll(n, func(c *html.Node) bool { return dom.IsElement(c, "tr") }) {
		var cells []string
		hasTH := false
		for _, cell := range dom.FindAll(tr, func(c *html.Node) bool {
			return dom.IsElement(c, "td") || dom.IsElement(c, "th")
		}) {
			if dom.IsElement(cell, "th") {
				hasTH = true
			}
			cells = append(cells, dom.Text(cell))
		}
		if len(cells) == 0 {
			continue
		}
		if i == 0 && hasTH {
			header = true
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		return Block{}, false
	}
	return Block{Kind: BlockTable, Rows: rows, Header: header}, true
}

// codeBlock formats a pre element. Inline styling wrappers contribute
// only their text, line breaks survive, and each line loses trailing
// whitespace while keeping its indentation.
func codeBlock(pre *html.Node) (Block, bool) {
	src := pre
	var lang string
	if code := dom.FindFirst(pre, func(c *html.Node) bool { return dom.IsElement(c, "code") }); code != nil {
		src = code
		lang = detectLanguage(code)
	}
	text := cleanCode(dom.RawText(src))
	if strings.TrimSpace(text) == "" {
		return Block{}, false
	}
	return Block{Kind: BlockCode, Lang: lang, Code: text}, true
}

// cleanCode trims trailing whitespace per line and the blank lines the
// markup adds around the content. Internal blank lines survive.
func cleanCode(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}

var knownLanguages = map[string]bool{
	"python": true, "javascript": true, "java": true, "cpp": true,
	"csharp": true, "go": true, "rust": true, "typescript": true,
}

// detectLanguage resolves a code block's language tag: explicit class
// token first, then the parent's classes, then content sniffing, then
// empty.
func detectLanguage(code *html.Node) string {
	if lang := languageFromClasses(code); lang != "" {
		return lang
	}
	if p := dom.Parent(code); p != nil {
		if lang := languageFromClasses(p); lang != "" {
			return lang
		}
	}
	return sniffLanguage(dom.RawText(code))
}

func languageFromClasses(n *html.Node) string {
	for _, cls := range dom.ClassList(n) {
		if lang, ok := strings.CutPrefix(cls, "language-"); ok {
			return lang
		}
		if lang, ok := strings.CutPrefix(cls, "lang-"); ok {
			return lang
		}
		if knownLanguages[cls] {
			return cls
		}
	}
	return ""
}

func sniffLanguage(content string) string {
	lower := strings.ToLower(content)
	upper := strings.ToUpper(content)
	switch {
	case strings.Contains(lower, "def ") || strings.Contains(lower, "import "):
		return "python"
	case strings.Contains(lower, "function") || strings.Contains(lower, "const ") ||
		strings.Contains(lower, "let ") || strings.Contains(lower, "=>"):
		return "javascript"
	case strings.Contains(upper, "SELECT") && strings.Contains(upper, "FROM"):
		return "sql"
	case strings.Contains(content, "#include") || strings.Contains(content, "std::") ||
		strings.Contains(content, "int main"):
		return "cpp"
	}
	return ""
}

// inlineText flattens an element to a single line of text with inline
// markers: emphasis, inline code, and links keep their markdown form.
func inlineText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(parent *html.Node) {
		for c := parent.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				sb.WriteString(c.Data)
			case html.ElementNode:
				switch c.Data {
				case "strong", "b":
					sb.WriteString(wrapNonEmpty("**", dom.Text(c)))
				case "em", "i":
					sb.WriteString(wrapNonEmpty("*", dom.Text(c)))
				case "code":
					sb.WriteString(wrapNonEmpty("`", dom.Text(c)))
				case "a":
					text := dom.Text(c)
					if href := dom.Attr(c, "href"); href != "" && text != "" {
						sb.WriteString("[" + text + "](" + href + ")")
					} else {
						sb.WriteString(text)
					}
				case "br":
					sb.WriteString(" ")
				default:
					walk(c)
				}
			}
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
