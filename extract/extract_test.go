package extract

import (
	"errors"
	"strings"
	"testing"
)

const sharePageURL = "https://claude.ai/share/75a3648c-8bfa-4730-b3c9-57c8a964051b"

// sharePage is a trimmed-down share page with two exchanges: the
// second assistant turn carries a thinking section and a code block.
const sharePage = `<!DOCTYPE html>
<html>
<head><title>My Chat | Claude</title></head>
<body>
<nav class="top-nav"><button>Share</button></nav>
<main>
	<div class="rounded-xl bg-bg-300 shadow">
		<div data-testid="user-message"><p>What is a goroutine?</p></div>
	</div>
	<div data-is-streaming="false">
		<div class="font-claude-response">
			<div class="grid-cols-1 gap-2.5">
				<p>A goroutine is a lightweight thread managed by the Go runtime.</p>
				<ul><li>cheap to create</li><li>multiplexed onto OS threads</li></ul>
			</div>
		</div>
	</div>
	<div class="rounded-xl bg-bg-300 shadow">
		<div data-testid="user-message"><p>Show me one.</p></div>
	</div>
	<div data-is-streaming="false">
		<div class="font-claude-response">
			<div class="grid-cols-1 p-3 pt-0 pr-8">
				<p>The user wants a minimal example.</p>
			</div>
			<div class="grid-cols-1 gap-2.5">
				<p>Here is the smallest useful one:</p>
				<pre class="code-block__code"><code class="language-go">go func() {
	fmt.Println("hi")
}()</code></pre>
			</div>
		</div>
	</div>
</main>
</body>
</html>`

func TestExtractSharePage(t *testing.T) {
	res := New(nil).Extract(sharePage, sharePageURL)
	if !res.Success {
		t.Fatalf("Extract failed: %v", res.Err)
	}
	conv := res.Conversation

	if conv.ShareID != "75a3648c-8bfa-4730-b3c9-57c8a964051b" {
		t.Errorf("ShareID = %q", conv.ShareID)
	}
	if conv.Title != "My Chat" {
		t.Errorf("Title = %q, want %q (suffix stripped)", conv.Title, "My Chat")
	}

	if len(conv.Turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(conv.Turns))
	}
	wantRoles := []Role{RoleHuman, RoleAssistant, RoleHuman, RoleAssistant}
	for i, turn := range conv.Turns {
		if turn.Ordinal != i {
			t.Errorf("turn %d has ordinal %d", i, turn.Ordinal)
		}
		if turn.Role != wantRoles[i] {
			t.Errorf("turn %d role = %q, want %q", i, turn.Role, wantRoles[i])
		}
	}

	if got := conv.Turns[0].Markdown(); got != "What is a goroutine?" {
		t.Errorf("user turn content = %q", got)
	}

	first := conv.Turns[1].Markdown()
	if !strings.Contains(first, "lightweight thread") {
		t.Errorf("assistant turn missing paragraph: %q", first)
	}
	if !strings.Contains(first, "- cheap to create\n- multiplexed onto OS threads") {
		t.Errorf("assistant turn missing list: %q", first)
	}
}

func TestReasoningRendersBeforeMainAnswer(t *testing.T) {
	res := New(nil).Extract(sharePage, sharePageURL)
	if !res.Success {
		t.Fatalf("Extract failed: %v", res.Err)
	}

	md := res.Conversation.Turns[3].Markdown()
	think := strings.Index(md, "**Thinking Process:**")
	reasoning := strings.Index(md, "The user wants a minimal example.")
	answer := strings.Index(md, "Here is the smallest useful one:")
	if think == -1 || reasoning == -1 || answer == -1 {
		t.Fatalf("missing sections in:\n%s", md)
	}
	if !(think < reasoning && reasoning < answer) {
		t.Errorf("expected thinking label, reasoning, then answer; got positions %d/%d/%d",
			think, reasoning, answer)
	}
}

func TestCodeBlockRoundTrip(t *testing.T) {
	res := New(nil).Extract(sharePage, sharePageURL)
	if !res.Success {
		t.Fatalf("Extract failed: %v", res.Err)
	}

	md := res.Conversation.Turns[3].Markdown()
	want := "```go\ngo func() {\n\tfmt.Println(\"hi\")\n}()\n```"
	if !strings.Contains(md, want) {
		t.Errorf("code fence not reproduced verbatim:\n%s", md)
	}
}

func TestCodeBlockPreservesInternalBlankLines(t *testing.T) {
	page := `<html><body><main>
	<div data-is-streaming="false">
		<div class="font-claude-response">
			<div class="grid-cols-1 gap-2.5">
				<pre class="code-block__code"><code class="language-python">def f():

    return 1</code></pre>
			</div>
		</div>
	</div>
	</main></body></html>`

	res := New(nil).Extract(page, sharePageURL)
	if !res.Success {
		t.Fatalf("Extract failed: %v", res.Err)
	}
	md := res.Conversation.Turns[0].Markdown()
	want := "```python\ndef f():\n\n    return 1\n```"
	if !strings.Contains(md, want) {
		t.Errorf("internal blank line lost:\n%s", md)
	}
}

func TestAlternatingFallback(t *testing.T) {
	page := `<html><body><div id="app">
	<p>Human: could you explain how garbage collection works?</p>
	<p>Claude: certainly, garbage collection reclaims unreachable memory.</p>
	<p>Human: and what does the collector do about fragmentation?</p>
	<p>Claude: Go's collector is non-compacting, so the allocator handles it.</p>
	</div></body></html>`

	res := New(nil).Extract(page, sharePageURL)
	if !res.Success {
		t.Fatalf("Extract failed: %v", res.Err)
	}
	turns := res.Conversation.Turns
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns from fallback, got %d", len(turns))
	}
	for i, turn := range turns {
		want := RoleHuman
		if i%2 == 1 {
			want = RoleAssistant
		}
		if turn.Role != want {
			t.Errorf("turn %d role = %q, want %q", i, turn.Role, want)
		}
		if turn.Ordinal != i {
			t.Errorf("turn %d ordinal = %d", i, turn.Ordinal)
		}
	}
}

func TestFallbackSkipsChrome(t *testing.T) {
	page := `<html><body>
	<div class="site-toolbar">lots of toolbar text that is long enough to qualify</div>
	<p>Human: a perfectly reasonable question about compilers?</p>
	<p>Claude: a perfectly reasonable answer about compilers.</p>
	</body></html>`

	res := New(nil).Extract(page, sharePageURL)
	if !res.Success {
		t.Fatalf("Extract failed: %v", res.Err)
	}
	if len(res.Conversation.Turns) != 2 {
		t.Fatalf("expected chrome filtered out, got %d turns", len(res.Conversation.Turns))
	}
}

func TestExtractIdempotent(t *testing.T) {
	e := New(nil)
	a := e.Extract(sharePage, sharePageURL)
	b := e.Extract(sharePage, sharePageURL)
	if !a.Success || !b.Success {
		t.Fatalf("Extract failed: %v / %v", a.Err, b.Err)
	}
	if len(a.Conversation.Turns) != len(b.Conversation.Turns) {
		t.Fatalf("turn counts differ: %d vs %d",
			len(a.Conversation.Turns), len(b.Conversation.Turns))
	}
	for i := range a.Conversation.Turns {
		if a.Conversation.Turns[i].Markdown() != b.Conversation.Turns[i].Markdown() {
			t.Errorf("turn %d rendered differently across runs", i)
		}
	}
}

func TestExtractInvalidURL(t *testing.T) {
	res := New(nil).Extract(sharePage, "https://example.com/share/75a3648c")
	if res.Success {
		t.Fatal("expected failure for foreign host")
	}
	if !errors.Is(res.Err, ErrInvalidURL) {
		t.Errorf("err = %v, want ErrInvalidURL", res.Err)
	}
}

func TestExtractEmptyHTML(t *testing.T) {
	res := New(nil).Extract("", sharePageURL)
	if res.Success {
		t.Fatal("expected failure for empty input")
	}
	if !errors.Is(res.Err, ErrEmptyExtraction) {
		t.Errorf("err = %v, want ErrEmptyExtraction", res.Err)
	}
	// Soft failure: the empty conversation is still available.
	if res.Conversation == nil {
		t.Error("expected partial conversation on empty extraction")
	}
}

func TestExtractTitleFallback(t *testing.T) {
	page := `<html><head><title>Claude</title></head><body><main>
	<div class="rounded-xl bg-bg-300"><div data-testid="user-message">hello over there friend</div></div>
	</main></body></html>`

	res := New(nil).Extract(page, sharePageURL)
	if res.Conversation.Title != defaultTitle {
		t.Errorf("Title = %q, want %q", res.Conversation.Title, defaultTitle)
	}
}

func TestWhitespaceOnlyTurnDropped(t *testing.T) {
	page := `<html><body><main>
	<div class="rounded-xl bg-bg-300"><div data-testid="user-message">   	 </div></div>
	<div class="rounded-xl bg-bg-300"><div data-testid="user-message">real question text</div></div>
	</main></body></html>`

	res := New(nil).Extract(page, sharePageURL)
	if !res.Success {
		t.Fatalf("Extract failed: %v", res.Err)
	}
	turns := res.Conversation.Turns
	if len(turns) != 1 {
		t.Fatalf("expected whitespace-only turn dropped, got %d turns", len(turns))
	}
	if turns[0].Ordinal != 0 {
		t.Errorf("ordinal not reassigned after drop: %d", turns[0].Ordinal)
	}
}

func TestConversationMarkdownLayout(t *testing.T) {
	res := New(nil).Extract(sharePage, sharePageURL)
	if !res.Success {
		t.Fatalf("Extract failed: %v", res.Err)
	}
	md := res.Conversation.Markdown()

	for _, want := range []string{
		"# My Chat\n",
		"## Conversation Details",
		"- **URL**: " + sharePageURL,
		"- **Share ID**: 75a3648c-8bfa-4730-b3c9-57c8a964051b",
		"- **Messages**: 4",
		"## Conversation",
		"# Human\n\nWhat is a goroutine?",
		"# Claude\n",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("document missing %q:\n%s", want, md)
		}
	}

	// No date was extracted, so no Date line is emitted.
	if strings.Contains(md, "- **Date**:") {
		t.Error("unexpected Date line for dateless conversation")
	}

	if strings.Index(md, "## Conversation Details") > strings.Index(md, "## Conversation\n") {
		t.Error("details section must precede the conversation")
	}
}

func TestMetadataProjection(t *testing.T) {
	res := New(nil).Extract(sharePage, sharePageURL)
	if !res.Success {
		t.Fatalf("Extract failed: %v", res.Err)
	}
	m := res.Conversation.Metadata()
	if m.ShareID != "75a3648c-8bfa-4730-b3c9-57c8a964051b" || m.Title != "My Chat" {
		t.Errorf("unexpected metadata: %+v", m)
	}
	if m.MessageCount != 4 {
		t.Errorf("MessageCount = %d, want 4", m.MessageCount)
	}
	if m.Date != nil {
		t.Errorf("Date should be nil, got %v", *m.Date)
	}
	if m.ParsedAt == "" {
		t.Error("ParsedAt must be set")
	}
}
