// Package panel renders the action surface for one feed item and
// dispatches user-selected actions to the request broker.
package panel

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-shiori/dom"
	"golang.org/x/net/html"

	"github.com/Harsh-eth/PostPilot/backend"
	"github.com/Harsh-eth/PostPilot/broker"
	"github.com/Harsh-eth/PostPilot/feed"
)

const (
	wrapperID     = "postpilot-wrapper"
	panelClass    = "postpilot-panel"
	resultClass   = "postpilot-result"
	personaClass  = "postpilot-persona"
	actionClass   = "postpilot-action"
	loadingText   = "Thinking..."
	hiddenAttr    = "hidden"
	activeAttr    = "data-active"

	defaultPersona = backend.PersonaHuman
)

// Controller owns the single panel instance for a document session.
// Opening a panel for a new item fully removes any previous one,
// including its containment wrapper; panels never stack.
type Controller struct {
	doc    *html.Node
	broker *broker.Broker
	panel  *Panel
}

// NewController creates a panel controller bound to a document and broker.
func NewController(doc *html.Node, b *broker.Broker) *Controller {
	return &Controller{doc: doc, broker: b}
}

// Open tears down the current panel, if any, and builds a fresh one for
// the given item.
func (c *Controller) Open(item feed.Item) *Panel {
	c.removeExisting()

	p := &Panel{
		broker:  c.broker,
		item:    item,
		persona: defaultPersona,
	}
	p.build()

	if body := documentBody(c.doc); body != nil {
		body.AppendChild(p.wrapper)
	}
	c.panel = p
	return p
}

// Current returns the open panel, or nil.
func (c *Controller) Current() *Panel {
	return c.panel
}

// removeExisting detaches every panel wrapper from the document, covering
// both the tracked instance and any stray wrapper left by the host.
func (c *Controller) removeExisting() {
	for _, n := range dom.GetElementsByTagName(c.doc, "div") {
		if dom.GetAttribute(n, "id") == wrapperID && n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
	c.panel = nil
}

// Panel is the action surface for one item.
type Panel struct {
	broker  *broker.Broker
	item    feed.Item
	persona backend.Persona

	wrapper     *html.Node
	actions     map[backend.Mode]*html.Node
	personaNode *html.Node
	resultNode  *html.Node
}

func (p *Panel) build() {
	p.wrapper = dom.CreateElement("div")
	dom.SetAttribute(p.wrapper, "id", wrapperID)

	root := dom.CreateElement("div")
	dom.SetAttribute(root, "class", panelClass)
	dom.AppendChild(p.wrapper, root)

	actions := dom.CreateElement("div")
	dom.SetAttribute(actions, "class", actionClass+"s")
	dom.AppendChild(root, actions)

	p.actions = make(map[backend.Mode]*html.Node, 3)
	for _, mode := range []backend.Mode{backend.ModeSummarize, backend.ModeContext, backend.ModeReplies} {
		btn := dom.CreateElement("button")
		dom.SetAttribute(btn, "class", actionClass)
		dom.SetAttribute(btn, "data-mode", string(mode))
		dom.AppendChild(btn, dom.CreateTextNode(label(mode)))
		dom.AppendChild(actions, btn)
		p.actions[mode] = btn
	}

	p.personaNode = dom.CreateElement("select")
	dom.SetAttribute(p.personaNode, "class", personaClass)
	dom.SetAttribute(p.personaNode, hiddenAttr, "")
	for _, persona := range []backend.Persona{backend.PersonaHuman, backend.PersonaHardcore, backend.PersonaCurator} {
		opt := dom.CreateElement("option")
		dom.SetAttribute(opt, "value", string(persona))
		dom.AppendChild(opt, dom.CreateTextNode(string(persona)))
		dom.AppendChild(p.personaNode, opt)
	}
	dom.AppendChild(root, p.personaNode)

	p.resultNode = dom.CreateElement("div")
	dom.SetAttribute(p.resultNode, "class", resultClass)
	dom.AppendChild(root, p.resultNode)
}

func label(mode backend.Mode) string {
	switch mode {
	case backend.ModeSummarize:
		return "Summary"
	case backend.ModeContext:
		return "Context"
	case backend.ModeReplies:
		return "Replies"
	}
	return string(mode)
}

// SetPersona selects the response style used for replies mode.
func (p *Panel) SetPersona(persona backend.Persona) {
	if persona.Valid() {
		p.persona = persona
	}
}

// RunAction marks the action active, reveals the persona selector for
// replies only, shows a loading indicator, and resolves the request via
// the broker. Failures render verbatim in the result area and are also
// returned; they never escalate beyond the panel.
func (p *Panel) RunAction(ctx context.Context, mode backend.Mode) (string, error) {
	p.setActive(mode)
	p.setPersonaVisible(mode == backend.ModeReplies)
	p.renderText(loadingText)

	res, err := p.broker.Process(ctx, broker.Request{
		Text:      p.item.Text,
		Author:    p.item.Author,
		Permalink: p.item.Permalink,
		Mode:      mode,
		Persona:   p.persona,
	})
	if err != nil {
		p.renderText(err.Error())
		return "", err
	}

	text := FormatResult(mode, res)
	p.renderText(text)
	return text, nil
}

func (p *Panel) setActive(mode backend.Mode) {
	for m, btn := range p.actions {
		if m == mode {
			dom.SetAttribute(btn, activeAttr, "true")
		} else {
			removeAttr(btn, activeAttr)
		}
	}
}

func (p *Panel) setPersonaVisible(visible bool) {
	if visible {
		removeAttr(p.personaNode, hiddenAttr)
	} else {
		dom.SetAttribute(p.personaNode, hiddenAttr, "")
	}
}

func (p *Panel) renderText(text string) {
	for p.resultNode.FirstChild != nil {
		p.resultNode.RemoveChild(p.resultNode.FirstChild)
	}
	dom.AppendChild(p.resultNode, dom.CreateTextNode(text))
}

// ResultText returns what the result area currently shows.
func (p *Panel) ResultText() string {
	return dom.TextContent(p.resultNode)
}

// FormatResult renders a backend result for display. Summaries are a
// single block; context becomes one bulleted line per non-empty
// paragraph; replies become a numbered list.
func FormatResult(mode backend.Mode, res *backend.Result) string {
	switch mode {
	case backend.ModeContext:
		return formatContext(res.Primary(mode))
	case backend.ModeReplies:
		replies := res.Replies
		if len(replies) == 0 {
			replies = nonEmptyLines(res.Text)
		}
		return formatReplies(replies)
	default:
		return strings.TrimSpace(res.Primary(mode))
	}
}

func formatContext(text string) string {
	var lines []string
	for _, line := range nonEmptyLines(text) {
		lines = append(lines, "• "+line)
	}
	return strings.Join(lines, "\n")
}

func formatReplies(replies []string) string {
	var lines []string
	for _, reply := range replies {
		reply = strings.TrimSpace(reply)
		if reply == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%d. %s", len(lines)+1, reply))
	}
	return strings.Join(lines, "\n")
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func removeAttr(n *html.Node, name string) {
	for i, a := range n.Attr {
		if a.Key == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func documentBody(doc *html.Node) *html.Node {
	if bodies := dom.GetElementsByTagName(doc, "body"); len(bodies) > 0 {
		return bodies[0]
	}
	return doc
}
