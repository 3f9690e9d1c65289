// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package admin

import (
	"context"
	"net/http"

	"github.com/sage-x-project/meshnet/internal/logger"
	"github.com/sage-x-project/meshnet/internal/metrics"
)

// Server is the node's operator-facing HTTP surface.
type Server struct {
	Hub *EventHub

	httpServer *http.Server
	log        logger.Logger
}

// New builds a Server listening on addr. secret gates every route except
// /healthz behind a bearer token (see IssueToken/RequireBearer); a nil or
// empty secret disables auth entirely, which is only appropriate for local
// development.
func New(addr string, secret []byte, log logger.Logger) *Server {
	hub := NewEventHub(log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", protect(secret, metrics.Handler()))
	mux.Handle("/ws/events", protect(secret, hub.Handler()))

	return &Server{
		Hub:        hub,
		log:        log,
		httpServer: &http.Server{Addr: addr, Handler: mux},
	}
}

func protect(secret []byte, h http.Handler) http.Handler {
	if len(secret) == 0 {
		return h
	}
	return RequireBearer(secret, h)
}

// Start runs the server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.httpServer.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
