// Copyright 2026 The kiji-rpc Authors
// This file is part of kiji-rpc.
//
// kiji-rpc is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// kiji-rpc is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with kiji-rpc.  If not, see <http://www.gnu.org/licenses/>.

package transporthttp

import (
	"context"
	"io"
	"net/http"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/indix/kiji-rpc/frame"
	"github.com/indix/kiji-rpc/log"
	"github.com/indix/kiji-rpc/rpc"
)

// maxRequestBodyBytes bounds a single call request body, mirroring
// maxHTTPRequestContentLength in
// _examples/pricillapb-contract/rpc/http.go.
const maxRequestBodyBytes = 64 << 20 // 64 MiB

// ServerConfig configures the HTTP server adapter (spec.md §4.6, §6).
type ServerConfig struct {
	// Addr is the listen address, e.g. "localhost:8080".
	Addr string
	// Path is the HTTP resource path RPCs are served on; defaults to "/".
	Path string
	// CORSOrigins is a comma-separated allowed-origins list, matching
	// the teacher's NewHTTPServer(corsString string, ...) signature in
	// _examples/pricillapb-contract/rpc/http.go.
	CORSOrigins string
}

// Server is the multi-threaded HTTP front-end that feeds framed request
// bodies into a rpc.Responder (spec.md §4.6). One handler goroutine per
// request; the Responder's protocol cache is safe for concurrent access
// so no additional locking is needed here.
type Server struct {
	responder *rpc.Responder
	cfg       ServerConfig
	http      *http.Server
	inFlight  mapset.Set[string]
}

// NewServer builds a Server around responder. Call ListenAndServe to
// start accepting connections.
func NewServer(responder *rpc.Responder, cfg ServerConfig) *Server {
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	s := &Server{
		responder: responder,
		cfg:       cfg,
		inFlight:  mapset.NewSet[string](),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, s.serveHTTP)

	var handler http.Handler = mux
	if cfg.CORSOrigins != "" {
		handler = corsHandler(cfg.CORSOrigins, mux)
	}
	s.http = &http.Server{Addr: cfg.Addr, Handler: handler}
	return s
}

func corsHandler(origins string, next http.Handler) http.Handler {
	var allowed []string
	for _, o := range strings.Split(origins, ",") {
		allowed = append(allowed, strings.TrimSpace(o))
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{http.MethodPost},
	})
	return c.Handler(next)
}

// serveHTTP handles a single RPC over one HTTP exchange (spec.md §4.6).
// HTTP access logging is suppressed at this layer per spec.md §4.6; only
// structured lifecycle/error logs are emitted.
func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reqID := uuid.NewString()
	s.inFlight.Add(reqID)
	defer s.inFlight.Remove(reqID)

	log := log.New("reqID", reqID, "remote", r.RemoteAddr)

	body := io.LimitReader(r.Body, maxRequestBodyBytes)
	callRequest, err := frame.NewReader(body).ReadMessage()
	if err != nil {
		log.Debug("transporthttp: failed to read framed request", "err", err)
		http.Error(w, "malformed framed request", http.StatusBadRequest)
		return
	}

	callResponse := s.responder.Respond(r.Context(), callRequest)

	w.Header().Set("Content-Type", AvroBinaryContentType)
	w.WriteHeader(http.StatusOK)
	if err := frame.NewWriter(w).WriteMessage(callResponse); err != nil {
		log.Debug("transporthttp: failed to write framed response", "err", err)
		return
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// ListenAndServe starts accepting connections; it blocks until the
// server is shut down or fails.
func (s *Server) ListenAndServe() error {
	log.Info("transporthttp: listening", "addr", s.cfg.Addr, "path", s.cfg.Path)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server, waiting for in-flight handlers to
// finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("transporthttp: shutting down", "inFlight", s.inFlight.Cardinality())
	return s.http.Shutdown(ctx)
}
