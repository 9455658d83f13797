// Package httpapi is a chi-based operator HTTP surface over the same
// session.Driver the MQTT/websocket transports drive: setup/run/abort as
// plain REST calls, bridging the driver's async mailbox+reply model into
// a synchronous request/response by correlating on the command id.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tasqsym/bt"
	"tasqsym/config"
	"tasqsym/logging"
	"tasqsym/session"
)

const defaultReplyTimeout = 30 * time.Second

// Server implements session.Transport itself: every driver reply is
// routed back to the HTTP handler that is awaiting it by correlation id.
type Server struct {
	router *chi.Mux
	srv    *http.Server
	driver *session.Driver
	logger logging.Logger

	mu      sync.Mutex
	pending map[string]chan session.Response
}

// New builds the router; the caller passes the *Server itself as the
// driver's Transport (it satisfies session.Transport).
func New(driver *session.Driver, logger logging.Logger) *Server {
	s := &Server{driver: driver, logger: logger, pending: make(map[string]chan session.Response)}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Post("/setup", s.handleSetup)
	r.Post("/run", s.handleRun)
	r.Post("/abort", s.handleAbort)
	s.router = r

	return s
}

// Router exposes the chi.Mux for tests and for embedding under a larger
// mux.
func (s *Server) Router() http.Handler { return s.router }

// ListenAndServe starts the HTTP server and blocks until ctx is done,
// then shuts it down gracefully (shaply-Robomesh's http_server.Start
// shutdown-on-ctx-done shape).
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

// Publish implements session.Transport.
func (s *Server) Publish(ctx context.Context, resp session.Response) error {
	s.mu.Lock()
	ch, ok := s.pending[resp.ID]
	if ok {
		delete(s.pending, resp.ID)
	}
	s.mu.Unlock()

	if !ok {
		s.logger.Warnw("httpapi: reply with no waiting request", "id", resp.ID)
		return nil
	}
	ch <- resp
	return nil
}

// registerPending must be called before the corresponding command is
// enqueued, so the reply has somewhere to land even if the driver
// processes it before the handler starts waiting.
func (s *Server) registerPending(id string) chan session.Response {
	ch := make(chan session.Response, 1)
	s.mu.Lock()
	s.pending[id] = ch
	s.mu.Unlock()
	return ch
}

func (s *Server) waitFor(id string, ch chan session.Response, timeout time.Duration) (session.Response, bool) {
	select {
	case resp := <-ch:
		return resp, true
	case <-time.After(timeout):
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return session.Response{}, false
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	var doc config.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := uuid.NewString()
	ch := s.registerPending(id)
	s.driver.EnqueueSetup(session.SetupCommand{ID: id, Command: "setup", Content: doc})
	s.respondWhenReady(w, id, ch)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content     bt.Document `json:"content"`
		NodePointer []int       `json:"node_pointer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := uuid.NewString()
	ch := s.registerPending(id)
	s.driver.EnqueueRun(session.RunCommand{ID: id, Command: "run", Content: body.Content, NodePointer: body.NodePointer})
	s.respondWhenReady(w, id, ch)
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Emergency bool `json:"emergency"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	id := uuid.NewString()
	ch := s.registerPending(id)
	s.driver.EnqueueAbort(session.AbortCommand{ID: id, Command: "abort", Emergency: body.Emergency})
	s.respondWhenReady(w, id, ch)
}

func (s *Server) respondWhenReady(w http.ResponseWriter, id string, ch chan session.Response) {
	resp, ok := s.waitFor(id, ch, defaultReplyTimeout)
	if !ok {
		http.Error(w, "timed out waiting for driver", http.StatusGatewayTimeout)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if !resp.Completion {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
