// Package api exposes the managed lights over a small HTTP surface:
// read canonical state, issue set commands, inspect the command ledger.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sengledd/internal/command"
	"github.com/dokzlo13/sengledd/internal/ledger"
	"github.com/dokzlo13/sengledd/internal/poller"
	"github.com/dokzlo13/sengledd/internal/sengled"
)

// Server is the HTTP API server.
type Server struct {
	addr       string
	manager    *poller.Manager
	dispatcher *command.Dispatcher
	ledger     *ledger.Ledger
	httpServer *http.Server
}

// NewServer creates a new API server.
func NewServer(host string, port int, manager *poller.Manager, dispatcher *command.Dispatcher, l *ledger.Ledger) *Server {
	return &Server{
		addr:       fmt.Sprintf("%s:%d", host, port),
		manager:    manager,
		dispatcher: dispatcher,
		ledger:     l,
	}
}

// Run starts the API server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /lights", s.handleList)
	mux.HandleFunc("GET /lights/{host}", s.handleGet)
	mux.HandleFunc("GET /lights/{host}/info", s.handleInfo)
	mux.HandleFunc("GET /lights/{host}/commands", s.handleCommands)
	mux.HandleFunc("PUT /lights/{host}/state", s.handleSetState)

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	log.Info().Str("addr", s.addr).Msg("Starting API server")

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("API server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

type lightView struct {
	Host       string             `json:"host"`
	Name       string             `json:"name,omitempty"`
	Capability string             `json:"capability"`
	Available  bool               `json:"available"`
	State      sengled.LightState `json:"state"`
}

func viewOf(ctl *sengled.Controller) lightView {
	state, available := ctl.State()
	return lightView{
		Host:       ctl.Host(),
		Name:       ctl.Name(),
		Capability: ctl.Capability().String(),
		Available:  available,
		State:      state,
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ctls := s.manager.All()
	views := make([]lightView, 0, len(ctls))
	for _, ctl := range ctls {
		views = append(views, viewOf(ctl))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	ctl, ok := s.manager.Get(r.PathValue("host"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown device")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(ctl))
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	ctl, ok := s.manager.Get(r.PathValue("host"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown device")
		return
	}
	info, err := ctl.Info(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	host := r.PathValue("host")
	if _, ok := s.manager.Get(host); !ok {
		writeError(w, http.StatusNotFound, "unknown device")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.ledger.RecentByHost(host, limit)
	if err != nil {
		log.Error().Err(err).Str("host", host).Msg("Failed to read command ledger")
		writeError(w, http.StatusInternalServerError, "failed to read command ledger")
		return
	}
	if entries == nil {
		entries = []*ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	host := r.PathValue("host")

	var req command.Request
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := s.dispatcher.Apply(r.Context(), host, req)
	switch {
	case errors.Is(err, command.ErrUnknownDevice):
		writeError(w, http.StatusNotFound, "unknown device")
		return
	case err != nil:
		// Optimistic local state was still applied; the next poll
		// settles it. The caller only learns about the wire failure.
		log.Warn().Err(err).Str("host", host).Msg("Set request failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	ctl, _ := s.manager.Get(host)
	writeJSON(w, http.StatusOK, viewOf(ctl))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode API response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
