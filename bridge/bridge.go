// Package bridge serves the message channel between the page-side
// components and the broker. Messages carry {action, data} envelopes and
// return {success, data|error} envelopes; failures are reported inside
// the envelope, not as transport errors.
package bridge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Harsh-eth/PostPilot/backend"
	"github.com/Harsh-eth/PostPilot/broker"
	"github.com/Harsh-eth/PostPilot/history"
)

// Envelope is one inbound message.
type Envelope struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// Response is the reply envelope.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// EnhanceRequest is the payload for the enhance action.
type EnhanceRequest struct {
	Text    string `json:"text"`
	Author  string `json:"author"`
	URL     string `json:"url"`
	Mode    string `json:"mode"`
	Persona string `json:"persona"`
}

// Server dispatches message envelopes to the broker and its stores.
type Server struct {
	broker  *broker.Broker
	history *history.Store
	client  *backend.Client
}

// New creates a bridge server. history may be nil.
func New(b *broker.Broker, h *history.Store, client *backend.Client) *Server {
	return &Server{broker: b, history: h, client: client}
}

// Router builds the HTTP router for the bridge.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/message", s.handleMessage)
	return r
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var env Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeResponse(w, Response{Success: false, Error: fmt.Sprintf("malformed envelope: %v", err)})
		return
	}

	switch env.Action {
	case "enhance":
		s.handleEnhance(w, r, env.Data)
	case "history":
		s.handleHistory(w, r)
	case "health":
		s.handleHealth(w, r)
	default:
		writeResponse(w, Response{Success: false, Error: fmt.Sprintf("unknown action %q", env.Action)})
	}
}

func (s *Server) handleEnhance(w http.ResponseWriter, r *http.Request, data json.RawMessage) {
	var req EnhanceRequest
	if err := json.Unmarshal(data, &req); err != nil {
		writeResponse(w, Response{Success: false, Error: fmt.Sprintf("malformed enhance data: %v", err)})
		return
	}

	res, err := s.broker.Process(r.Context(), broker.Request{
		Text:      req.Text,
		Author:    req.Author,
		Permalink: req.URL,
		Mode:      backend.Mode(req.Mode),
		Persona:   backend.Persona(req.Persona),
	})
	if err != nil {
		writeResponse(w, Response{Success: false, Error: err.Error()})
		return
	}
	writeResponse(w, Response{Success: true, Data: json.RawMessage(res.Raw)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeResponse(w, Response{Success: true, Data: []history.Entry{}})
		return
	}
	entries, err := s.history.Recent(r.Context())
	if err != nil {
		writeResponse(w, Response{Success: false, Error: err.Error()})
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeResponse(w, Response{Success: true, Data: entries})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.client.Health(r.Context()); err != nil {
		writeResponse(w, Response{Success: false, Error: err.Error()})
		return
	}
	writeResponse(w, Response{Success: true, Data: map[string]string{"status": "ok"}})
}

func writeResponse(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Warn("write bridge response failed", "error", err)
	}
}
