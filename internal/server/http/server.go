package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rzbill/rollq/internal/history"
	"github.com/rzbill/rollq/internal/queue"
	"github.com/rzbill/rollq/internal/rollcycle"
	"github.com/rzbill/rollq/internal/runtime"
	"github.com/rzbill/rollq/pkg/log"
)

type Server struct {
	rt     *runtime.Runtime
	srv    *http.Server
	lis    net.Listener
	logger log.Logger

	// The appender is single-writer; handler goroutines serialize here.
	appendMu sync.Mutex
}

func New(rt *runtime.Runtime, logger log.Logger) *Server {
	if logger == nil {
		logger = log.GetDefaultLogger().WithComponent("http")
	}
	mux := http.NewServeMux()
	s := &Server{rt: rt, logger: logger, srv: &http.Server{Handler: cors(mux)}}
	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.HandleFunc("/v1/policies", s.handlePolicies)
	mux.HandleFunc("/v1/append", s.handleAppend)
	mux.HandleFunc("/v1/read", s.handleRead)
	mux.HandleFunc("/v1/history", s.handleHistory)
	mux.HandleFunc("/v1/addresses", s.handleAddresses)
	return s
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("http listening", log.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_serving"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type policyInfo struct {
	Name         string `json:"name"`
	Format       string `json:"format"`
	LengthMillis int64  `json:"lengthMillis"`
	IndexFanout  int    `json:"indexFanout"`
	IndexSpacing int    `json:"indexSpacing"`
	AddressBits  uint   `json:"addressBits"`
	MaxEntries   uint64 `json:"maxEntriesPerCycle"`
	Active       bool   `json:"active"`
}

func (s *Server) handlePolicies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	active := s.rt.Policy().Name()
	var out []policyInfo
	for _, p := range s.rt.Catalog().All() {
		out = append(out, policyInfo{
			Name:         p.Name(),
			Format:       p.Format(),
			LengthMillis: p.LengthMillis(),
			IndexFanout:  p.IndexFanout(),
			IndexSpacing: p.IndexSpacing(),
			AddressBits:  p.AddressBits(),
			MaxEntries:   p.MaxEntriesPerCycle(),
			Active:       p.Name() == active,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"policies": out})
}

type appendReq struct {
	Payload []byte `json:"payload"`
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req appendReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	app, err := s.rt.Queue().Appender()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, queue.ErrReadOnly) {
			status = http.StatusForbidden
		}
		writeError(w, status, err)
		return
	}
	s.appendMu.Lock()
	addr, err := app.Append(r.Context(), req.Payload)
	s.appendMu.Unlock()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, queue.ErrCapacityExceeded) {
			status = http.StatusInsufficientStorage
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"address": addr.String()})
}

type readReq struct {
	Address string `json:"address"`
	Limit   int    `json:"limit"`
}

type readEntry struct {
	Address string `json:"address"`
	Payload []byte `json:"payload"`
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req readReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	addr, err := rollcycle.ParseAddress(req.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	limit := req.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	tl, err := s.rt.Queue().Tailer()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer tl.Close()
	if err := tl.MoveToAddress(addr); err != nil {
		switch {
		case errors.Is(err, queue.ErrSegmentNotFound), errors.Is(err, queue.ErrEndOfStream):
			writeError(w, http.StatusNotFound, err)
		case errors.Is(err, rollcycle.ErrAddressRange):
			writeError(w, http.StatusBadRequest, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	entries := make([]readEntry, 0, limit)
	for len(entries) < limit {
		at, err := tl.NextAddress()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		payload, err := tl.ReadNext()
		if errors.Is(err, queue.ErrEndOfStream) {
			break
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		entries = append(entries, readEntry{Address: at.String(), Payload: payload})
	}
	resp := map[string]any{"entries": entries}
	if next, err := tl.NextAddress(); err == nil {
		resp["next"] = next.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sum, err := history.NewReader(s.rt.Queue()).Summary()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleAddresses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := s.rt.Queue()
	first, err := q.FirstAddress()
	if errors.Is(err, queue.ErrEndOfStream) {
		writeJSON(w, http.StatusOK, map[string]any{"empty": true})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	last, err := q.LastAddress()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"first": first.String(),
		"last":  last.String(),
	})
}
