// Package broker orchestrates enrichment requests: cache lookups,
// in-flight deduplication, backend calls, and history recording.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/Harsh-eth/PostPilot/backend"
	"github.com/Harsh-eth/PostPilot/cache"
	"github.com/Harsh-eth/PostPilot/fingerprint"
	"github.com/Harsh-eth/PostPilot/history"
)

// ErrEmptyText is returned when a request carries no usable text. It is
// surfaced before any network activity.
var ErrEmptyText = errors.New("text is required")

// historyTextLimit bounds the text recorded per history entry.
const historyTextLimit = 100

// Request is one enrichment request for a feed item.
type Request struct {
	Text      string
	Author    string
	Permalink string
	Mode      backend.Mode
	Persona   backend.Persona
}

// Broker owns the result cache and history store for one session.
type Broker struct {
	client  *backend.Client
	cache   *cache.Cache[*backend.Result]
	history *history.Store
	flight  singleflight.Group
}

// New creates a broker. The history store may be nil, in which case no
// interactions are recorded.
func New(client *backend.Client, c *cache.Cache[*backend.Result], h *history.Store) *Broker {
	return &Broker{client: client, cache: c, history: h}
}

// Process resolves one request. Cache hits return immediately with no
// network call and no history write. On a miss the backend is called with
// the raw (unnormalized) text; the cache and history are only mutated
// after a confirmed success. Failures propagate unchanged. Identical
// in-flight requests are coalesced into a single backend call.
func (b *Broker) Process(ctx context.Context, req Request) (*backend.Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	if !req.Mode.Valid() {
		return nil, fmt.Errorf("unknown mode %q", req.Mode)
	}
	if req.Persona == "" {
		req.Persona = backend.PersonaHuman
	}
	if !req.Persona.Valid() {
		return nil, fmt.Errorf("unknown persona %q", req.Persona)
	}

	key := fingerprint.Key(string(req.Mode), string(req.Persona), req.Text)

	if res, ok := b.cache.Get(key); ok {
		return res, nil
	}

	v, err, _ := b.flight.Do(key, func() (any, error) {
		// A coalesced waiter may arrive after the leader populated the
		// cache; recheck before paying for a network call.
		if res, ok := b.cache.Get(key); ok {
			return res, nil
		}

		res, err := b.client.Call(ctx, req.Mode, backend.Request{
			Text:    req.Text,
			Author:  req.Author,
			URL:     req.Permalink,
			Persona: string(req.Persona),
		})
		if err != nil {
			return nil, err
		}

		b.cache.Put(key, res)
		b.record(ctx, req, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*backend.Result), nil
}

// record appends a history entry for a successful request. Persistence
// failures are logged and swallowed; they never fail the request.
func (b *Broker) record(ctx context.Context, req Request, res *backend.Result) {
	if b.history == nil {
		return
	}
	entry := history.Entry{
		Mode:   string(req.Mode),
		Text:   truncate(req.Text, historyTextLimit),
		Result: string(res.Raw),
	}
	if err := b.history.Append(ctx, entry); err != nil {
		slog.Warn("history append failed", "mode", req.Mode, "error", err)
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
