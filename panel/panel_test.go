package panel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-shiori/dom"
	"golang.org/x/net/html"

	"github.com/Harsh-eth/PostPilot/backend"
	"github.com/Harsh-eth/PostPilot/broker"
	"github.com/Harsh-eth/PostPilot/cache"
	"github.com/Harsh-eth/PostPilot/feed"
	"github.com/Harsh-eth/PostPilot/history"
)

func emptyDoc(t *testing.T) *html.Node {
	t.Helper()
	root, err := html.Parse(strings.NewReader(`<html><body></body></html>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return root
}

func newTestController(t *testing.T, handler http.HandlerFunc) (*Controller, *history.Store, *html.Node) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	client := backend.NewClient(backend.WithBaseURL(server.URL))
	b := broker.New(client, cache.New[*backend.Result](10), store)

	doc := emptyDoc(t)
	return NewController(doc, b), store, doc
}

func countWrappers(doc *html.Node) int {
	n := 0
	for _, node := range dom.GetElementsByTagName(doc, "div") {
		if dom.GetAttribute(node, "id") == wrapperID {
			n++
		}
	}
	return n
}

func TestOpenSingleInstance(t *testing.T) {
	c, _, doc := newTestController(t, func(w http.ResponseWriter, r *http.Request) {})

	c.Open(feed.Item{Text: "first"})
	if countWrappers(doc) != 1 {
		t.Fatalf("got %d wrappers after first Open, want 1", countWrappers(doc))
	}

	c.Open(feed.Item{Text: "second"})
	if countWrappers(doc) != 1 {
		t.Errorf("got %d wrappers after second Open, want 1 (panels must not stack)", countWrappers(doc))
	}
}

func TestRunActionEndToEnd(t *testing.T) {
	// The full path: panel -> broker -> backend -> cache/history -> render.
	c, store, _ := newTestController(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/summarize" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"summary": "New exoplanet may support liquid water, boosting habitability research.",
		})
	})

	item := feed.Item{
		Text: "Scientists discover new exoplanet with potential for liquid water, raising hopes for habitability research.",
	}
	p := c.Open(item)

	got, err := p.RunAction(context.Background(), backend.ModeSummarize)
	if err != nil {
		t.Fatalf("RunAction failed: %v", err)
	}

	want := "New exoplanet may support liquid water, boosting habitability research."
	if got != want {
		t.Errorf("rendered %q, want %q", got, want)
	}
	if p.ResultText() != want {
		t.Errorf("result area shows %q, want %q", p.ResultText(), want)
	}

	entries, err := store.Recent(context.Background())
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("history has %d entries, want 1", len(entries))
	}
	if entries[0].Mode != "summarize" {
		t.Errorf("history mode = %q, want summarize", entries[0].Mode)
	}
	if !strings.HasSuffix(entries[0].Text, "...") {
		t.Errorf("history text = %q, want ellipsis suffix", entries[0].Text)
	}
}

func TestRunActionRendersError(t *testing.T) {
	c, _, _ := newTestController(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("backend exploded"))
	})

	p := c.Open(feed.Item{Text: "doomed"})
	_, err := p.RunAction(context.Background(), backend.ModeSummarize)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(p.ResultText(), "backend exploded") {
		t.Errorf("result area shows %q, want verbatim error", p.ResultText())
	}

	// A failed request must not prevent later requests.
	if _, err := p.RunAction(context.Background(), backend.ModeSummarize); err == nil {
		t.Error("expected second request to hit backend again")
	}
}

func TestRunActionEmptyText(t *testing.T) {
	called := false
	c, _, _ := newTestController(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	p := c.Open(feed.Item{Text: "   "})
	if _, err := p.RunAction(context.Background(), backend.ModeSummarize); err == nil {
		t.Fatal("expected input error for empty text")
	}
	if called {
		t.Error("empty text reached the network")
	}
}

func TestPersonaSelectorVisibility(t *testing.T) {
	c, _, _ := newTestController(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"replies": []string{"a"}})
	})

	p := c.Open(feed.Item{Text: "post"})
	ctx := context.Background()

	p.RunAction(ctx, backend.ModeReplies)
	if hasAttr(p.personaNode, hiddenAttr) {
		t.Error("persona selector hidden in replies mode")
	}

	p.RunAction(ctx, backend.ModeSummarize)
	if !hasAttr(p.personaNode, hiddenAttr) {
		t.Error("persona selector visible outside replies mode")
	}
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}

func TestFormatResultSummary(t *testing.T) {
	res := &backend.Result{Summary: "  A clean summary. "}
	if got := FormatResult(backend.ModeSummarize, res); got != "A clean summary." {
		t.Errorf("FormatResult = %q", got)
	}
}

func TestFormatResultContext(t *testing.T) {
	res := &backend.Result{Context: "First point.\n\n  Second point.  \n\nThird."}
	want := "• First point.\n• Second point.\n• Third."
	if got := FormatResult(backend.ModeContext, res); got != want {
		t.Errorf("FormatResult = %q, want %q", got, want)
	}
}

func TestFormatResultReplies(t *testing.T) {
	res := &backend.Result{Replies: []string{"Nice take!", "Disagree strongly."}}
	want := "1. Nice take!\n2. Disagree strongly."
	if got := FormatResult(backend.ModeReplies, res); got != want {
		t.Errorf("FormatResult = %q, want %q", got, want)
	}
}

func TestFormatResultTextFallback(t *testing.T) {
	res := &backend.Result{Text: "generic output"}
	if got := FormatResult(backend.ModeSummarize, res); got != "generic output" {
		t.Errorf("summary fallback = %q", got)
	}
	if got := FormatResult(backend.ModeReplies, res); got != "1. generic output" {
		t.Errorf("replies fallback = %q", got)
	}
}
