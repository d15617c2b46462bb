// Package rpc exposes the daemon over JSON-RPC 2.0 with a websocket
// event stream and Prometheus metrics on the same listener.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dexfoundry/feesplitd/internal/core/burn"
	"github.com/dexfoundry/feesplitd/internal/core/engine"
	"github.com/dexfoundry/feesplitd/internal/core/ledger"
)

// Server hosts the HTTP surface of the daemon.
type Server struct {
	addr    string
	handler *Handler
	hub     *Hub
	metrics http.Handler
	log     *logrus.Entry

	// reject, when set, is called with the reason class of every
	// failed request.
	reject func(reason string)
}

// NewServer builds the server. The metrics handler may be nil to
// disable the /metrics route.
func NewServer(addr string, handler *Handler, hub *Hub, metrics http.Handler, log *logrus.Entry) *Server {
	return &Server{
		addr:    addr,
		handler: handler,
		hub:     hub,
		metrics: metrics,
		log:     log,
	}
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// SetRejectHook registers a callback observing failed requests by
// reason class.
func (s *Server) SetRejectHook(fn func(reason string)) { s.reject = fn }

// Run serves until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", s)
	mux.Handle("/ws", s.hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.WithField("addr", s.addr).Info("rpc server listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

// ServeHTTP handles one JSON-RPC request.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, nil, -32700, "parse error")
		return
	}

	result, err := s.handler.Handle(r.Context(), bearerToken(r), req.Method, req.Params)
	if err != nil {
		s.log.WithError(err).WithField("method", req.Method).Debug("rpc request failed")
		if s.reject != nil {
			s.reject(reasonClass(err))
		}
		writeRPCError(w, req.ID, codeFor(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"result":  result,
		"id":      req.ID,
	})
}

// codeFor maps error classes to JSON-RPC error codes.
func codeFor(err error) int {
	switch {
	case errors.Is(err, ErrMethodNotFound):
		return -32601
	case errors.Is(err, ErrForbidden):
		return -32001
	case errors.Is(err, engine.ErrReentrant):
		return -32002
	case errors.Is(err, engine.ErrInsolvent), errors.Is(err, ledger.ErrOwedUnderflow):
		return -32003
	case errors.Is(err, burn.ErrTooSoon),
		errors.Is(err, burn.ErrZeroQuote),
		errors.Is(err, burn.ErrRateCeiling),
		errors.Is(err, burn.ErrQuoteDeviation),
		errors.Is(err, burn.ErrCallerNotAllowed):
		return -32004
	default:
		return -32000
	}
}

// reasonClass buckets a failure for instrumentation, mirroring codeFor.
func reasonClass(err error) string {
	switch codeFor(err) {
	case -32601:
		return "method_not_found"
	case -32001:
		return "forbidden"
	case -32002:
		return "reentrant"
	case -32003:
		return "solvency"
	case -32004:
		return "burn_gate"
	default:
		return "other"
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-Auth-Token")
}

func writeRPCError(w http.ResponseWriter, id interface{}, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	})
}
