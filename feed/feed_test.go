package feed

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

const sampleItem = `
<html><body>
<article data-testid="tweet">
	<div data-testid="User-Name"><a href="/someuser">Some User</a></div>
	<div data-testid="tweetText">Scientists discover   new exoplanet.</div>
	<a href="/someuser/status/12345">2h</a>
	<div role="group">
		<button>reply</button>
		<button>repost</button>
		<button>share</button>
	</div>
</article>
</body></html>`

func parse(t *testing.T, doc string) *html.Node {
	t.Helper()
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return root
}

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	ex, err := NewExtractor(DefaultSelectors())
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	return ex
}

func TestNewExtractorBadSelector(t *testing.T) {
	sel := DefaultSelectors()
	sel.Item = "div[["
	if _, err := NewExtractor(sel); err == nil {
		t.Fatal("expected error for invalid selector")
	}
}

func TestItems(t *testing.T) {
	ex := newExtractor(t)
	root := parse(t, sampleItem)

	items := ex.Items(root)
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
}

func TestExtract(t *testing.T) {
	ex := newExtractor(t)
	root := parse(t, sampleItem)

	item := ex.Extract(ex.Items(root)[0])

	if !strings.Contains(item.Text, "Scientists discover") {
		t.Errorf("Text = %q", item.Text)
	}
	if item.Author != "Some User" {
		t.Errorf("Author = %q, want Some User", item.Author)
	}
	if item.Permalink != "/someuser/status/12345" {
		t.Errorf("Permalink = %q", item.Permalink)
	}
}

func TestExtractMissingOptionalFields(t *testing.T) {
	ex := newExtractor(t)
	root := parse(t, `
	<article data-testid="tweet">
		<div data-testid="tweetText">Just text.</div>
	</article>`)

	item := ex.Extract(ex.Items(root)[0])
	if item.Author != "" {
		t.Errorf("Author = %q, want empty", item.Author)
	}
	if item.Permalink != "" {
		t.Errorf("Permalink = %q, want empty", item.Permalink)
	}
	if item.Text != "Just text." {
		t.Errorf("Text = %q", item.Text)
	}
}

func TestExtractSalvageFallback(t *testing.T) {
	ex := newExtractor(t)
	// Unrecognized layout: no tweetText node, text lives in a plain paragraph.
	root := parse(t, `
	<article data-testid="tweet">
		<div><p>An unusual layout holding the post body text for this item, long enough for readability to keep.</p></div>
	</article>`)

	item := ex.Extract(ex.Items(root)[0])
	if !strings.Contains(item.Text, "unusual layout") {
		t.Errorf("salvaged Text = %q", item.Text)
	}
}

func TestActionGroup(t *testing.T) {
	ex := newExtractor(t)
	root := parse(t, sampleItem)

	group := ex.ActionGroup(ex.Items(root)[0])
	if group == nil {
		t.Fatal("action group not found")
	}

	rootNoGroup := parse(t, `
	<article data-testid="tweet">
		<div data-testid="tweetText">No actions here.</div>
	</article>`)
	if g := ex.ActionGroup(ex.Items(rootNoGroup)[0]); g != nil {
		t.Error("expected nil action group for layout without one")
	}
}

func TestContainsItem(t *testing.T) {
	ex := newExtractor(t)

	with := parse(t, sampleItem)
	if !ex.ContainsItem(with) {
		t.Error("ContainsItem = false for document with an item")
	}

	without := parse(t, `<div><span>nothing feed-shaped</span></div>`)
	if ex.ContainsItem(without) {
		t.Error("ContainsItem = true for document without items")
	}
}
