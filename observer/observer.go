// Package observer watches a live document for feed items and attaches
// one action control per item, exactly once.
package observer

import (
	"context"
	"sync"
	"time"

	"github.com/go-shiori/dom"
	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/Harsh-eth/PostPilot/feed"
)

const (
	defaultDebounce = 250 * time.Millisecond

	controlClass = "postpilot-btn"
	idAttr       = "data-postpilot-id"
)

// Binding associates a stable item identifier with its injected control.
type Binding struct {
	ID      string
	Item    *html.Node
	Control *html.Node
}

// Batch is one group of mutation notifications. Added nodes that are
// still detached are grafted into the document body before scanning;
// nodes the host already inserted are left where they are.
type Batch struct {
	Added []*html.Node
}

// Observer owns the document for one page session. Bindings are never
// removed; the map grows with the session, which is an accepted bound.
type Observer struct {
	mu        sync.Mutex
	doc       *html.Node
	extractor *feed.Extractor
	bindings  map[string]*Binding
	debounce  time.Duration
	onBind    func(Binding)
	timer     *time.Timer
}

// Option configures an Observer.
type Option func(*Observer)

// WithDebounce sets the delay between a mutation notification and the
// rescan it schedules.
func WithDebounce(d time.Duration) Option {
	return func(o *Observer) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithOnBind registers a callback invoked for each newly bound item.
func WithOnBind(fn func(Binding)) Option {
	return func(o *Observer) {
		o.onBind = fn
	}
}

// New creates an observer over the given parsed document.
func New(doc *html.Node, extractor *feed.Extractor, opts ...Option) *Observer {
	o := &Observer{
		doc:       doc,
		extractor: extractor,
		bindings:  make(map[string]*Binding),
		debounce:  defaultDebounce,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start performs the initial full scan and then consumes mutation batches
// until ctx is done. Scans triggered by mutations are debounced; no
// scanning happens synchronously in the notification path.
func (o *Observer) Start(ctx context.Context, mutations <-chan Batch) {
	o.Scan()
	go o.loop(ctx, mutations)
}

func (o *Observer) loop(ctx context.Context, mutations <-chan Batch) {
	for {
		select {
		case <-ctx.Done():
			o.mu.Lock()
			if o.timer != nil {
				o.timer.Stop()
			}
			o.mu.Unlock()
			return
		case batch, ok := <-mutations:
			if !ok {
				return
			}
			if !o.accept(batch) {
				continue
			}
			o.scheduleScan()
		}
	}
}

// accept grafts detached batch nodes into the document and reports
// whether the batch introduced anything feed-item-shaped.
func (o *Observer) accept(batch Batch) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	hasItem := false
	body := documentBody(o.doc)
	for _, node := range batch.Added {
		if node == nil {
			continue
		}
		if node.Parent == nil && body != nil {
			body.AppendChild(node)
		}
		if o.extractor.ContainsItem(node) {
			hasItem = true
		}
	}
	return hasItem
}

func (o *Observer) scheduleScan() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.timer != nil {
		o.timer.Stop()
	}
	o.timer = time.AfterFunc(o.debounce, func() { o.Scan() })
}

// Scan walks the whole document, binding and augmenting any item not yet
// bound. It returns the number of newly bound items. Items without a
// locatable action group are skipped silently.
func (o *Observer) Scan() int {
	o.mu.Lock()

	var bound []Binding
	for _, node := range o.extractor.Items(o.doc) {
		id := o.itemID(node)
		if _, ok := o.bindings[id]; ok {
			continue
		}

		group := o.extractor.ActionGroup(node)
		if group == nil {
			continue
		}

		control := newControl()
		group.InsertBefore(control, lastElementChild(group))

		b := &Binding{ID: id, Item: node, Control: control}
		o.bindings[id] = b
		bound = append(bound, *b)
	}

	onBind := o.onBind
	o.mu.Unlock()

	if onBind != nil {
		for _, b := range bound {
			onBind(b)
		}
	}
	return len(bound)
}

// itemID derives a stable identifier for an item node: its permalink when
// one is extractable, otherwise a random identifier tagged onto the node
// so later rescans of the same node reuse it. Two permalink-less items
// stay distinct even when textually identical.
func (o *Observer) itemID(node *html.Node) string {
	if link := o.extractor.PermalinkOf(node); link != "" {
		return "link:" + link
	}
	if id := dom.GetAttribute(node, idAttr); id != "" {
		return "uid:" + id
	}
	id := uuid.NewString()
	dom.SetAttribute(node, idAttr, id)
	return "uid:" + id
}

// Count reports the number of bound items.
func (o *Observer) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.bindings)
}

// Bindings returns a snapshot of all current bindings.
func (o *Observer) Bindings() []Binding {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Binding, 0, len(o.bindings))
	for _, b := range o.bindings {
		out = append(out, *b)
	}
	return out
}

func newControl() *html.Node {
	btn := dom.CreateElement("button")
	dom.SetAttribute(btn, "class", controlClass)
	dom.SetAttribute(btn, "type", "button")
	dom.SetAttribute(btn, "aria-label", "PostPilot")
	dom.AppendChild(btn, dom.CreateTextNode("✨"))
	return btn
}

// lastElementChild returns the last element (non-text) child, so the
// control lands before the group's last control rather than before
// trailing whitespace. Nil means append.
func lastElementChild(n *html.Node) *html.Node {
	for c := n.LastChild; c != nil; c = c.PrevSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

func documentBody(doc *html.Node) *html.Node {
	if bodies := dom.GetElementsByTagName(doc, "body"); len(bodies) > 0 {
		return bodies[0]
	}
	return doc
}
