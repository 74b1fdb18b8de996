// Package feed models feed items and extracts their data from the host
// document.
package feed

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/go-shiori/dom"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// Item is one feed item read from the document at activation time. It is
// built fresh on each activation and never cached; the document may have
// changed since any earlier read.
type Item struct {
	Text      string
	Author    string
	Permalink string
	Node      *html.Node
}

// Selectors names the CSS selectors locating a feed item and its parts.
type Selectors struct {
	Item        string `yaml:"item"`
	Text        string `yaml:"text"`
	Author      string `yaml:"author"`
	Permalink   string `yaml:"permalink"`
	ActionGroup string `yaml:"action_group"`
}

// DefaultSelectors targets the tweet-shaped markup of the stock feed layout.
func DefaultSelectors() Selectors {
	return Selectors{
		Item:        `article[data-testid="tweet"]`,
		Text:        `div[data-testid="tweetText"]`,
		Author:      `div[data-testid="User-Name"] a`,
		Permalink:   `a[href*="/status/"]`,
		ActionGroup: `div[role="group"]`,
	}
}

// Extractor reads item data out of document nodes using compiled selectors.
type Extractor struct {
	item        cascadia.Selector
	text        cascadia.Selector
	author      cascadia.Selector
	permalink   cascadia.Selector
	actionGroup cascadia.Selector
}

// NewExtractor compiles the given selectors.
func NewExtractor(sel Selectors) (*Extractor, error) {
	compile := func(name, expr string) (cascadia.Selector, error) {
		s, err := cascadia.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile %s selector %q: %w", name, expr, err)
		}
		return s, nil
	}

	e := &Extractor{}
	var err error
	if e.item, err = compile("item", sel.Item); err != nil {
		return nil, err
	}
	if e.text, err = compile("text", sel.Text); err != nil {
		return nil, err
	}
	if e.author, err = compile("author", sel.Author); err != nil {
		return nil, err
	}
	if e.permalink, err = compile("permalink", sel.Permalink); err != nil {
		return nil, err
	}
	if e.actionGroup, err = compile("action_group", sel.ActionGroup); err != nil {
		return nil, err
	}
	return e, nil
}

// Items returns every feed-item node in the tree rooted at root.
func (e *Extractor) Items(root *html.Node) []*html.Node {
	return e.item.MatchAll(root)
}

// ContainsItem reports whether the tree rooted at node holds at least one
// feed-item-shaped element (the node itself included).
func (e *Extractor) ContainsItem(node *html.Node) bool {
	return e.item.MatchFirst(node) != nil
}

// Extract reads the item's text, author, and permalink from the live node.
func (e *Extractor) Extract(node *html.Node) Item {
	item := Item{Node: node}

	if n := e.text.MatchFirst(node); n != nil {
		item.Text = strings.TrimSpace(dom.TextContent(n))
	}
	if item.Text == "" {
		item.Text = salvageText(node)
	}

	if n := e.author.MatchFirst(node); n != nil {
		item.Author = strings.TrimSpace(dom.TextContent(n))
	}

	item.Permalink = e.PermalinkOf(node)
	return item
}

// PermalinkOf returns the item's permalink href, or "" when the layout
// does not expose one.
func (e *Extractor) PermalinkOf(node *html.Node) string {
	if n := e.permalink.MatchFirst(node); n != nil {
		return dom.GetAttribute(n, "href")
	}
	return ""
}

// ActionGroup returns the item's nearest action-button group, or nil when
// the layout does not expose one.
func (e *Extractor) ActionGroup(node *html.Node) *html.Node {
	return e.actionGroup.MatchFirst(node)
}

var salvageURL, _ = url.Parse("http://feed.local/")

// salvageText runs readability over the item subtree for layouts the text
// selector does not recognize.
func salvageText(node *html.Node) string {
	var sb strings.Builder
	if err := html.Render(&sb, node); err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(sb.String()), salvageURL)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}
