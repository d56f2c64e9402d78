package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/livp123/pktstream/internal/broadcast"
	"github.com/livp123/pktstream/internal/capture"
	"github.com/livp123/pktstream/internal/config"
	pkgerrors "github.com/livp123/pktstream/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes the viewer websocket, the REST control plane and metrics.
// Server 提供观察端 websocket、REST 控制接口与监控指标。
type Server struct {
	cfg      *config.Config
	manager  *capture.Manager
	hub      *broadcast.Broadcaster
	log      *zap.SugaredLogger
	upgrader websocket.Upgrader
	http     *http.Server
}

// NewServer creates a Server.
func NewServer(cfg *config.Config, manager *capture.Manager, hub *broadcast.Broadcaster, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{
		cfg:     cfg,
		manager: manager,
		hub:     hub,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// viewers are not authenticated
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.http = &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout.Std(),
		ReadTimeout:       cfg.Server.ReadTimeout.Std(),
		WriteTimeout:      cfg.Server.WriteTimeout.Std(),
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/capture", s.handleCapture).Methods(http.MethodPost)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	if s.cfg.Metrics.Enabled {
		r.Handle(s.cfg.Metrics.Path, promhttp.Handler())
	}
	return r
}

// Start serves until Shutdown is called.
// Start 启动服务直到调用 Shutdown。
func (s *Server) Start() error {
	s.log.Infof("🚀 pktstream listening on %s", s.cfg.Server.Listen)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and closes every viewer.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.hub.Close()
	return err
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, indexHTML)
}

type captureRequest struct {
	Duration *int `json:"duration"`
}

type captureResponse struct {
	ID       string `json:"id"`
	Duration int    `json:"duration"`
	Message  string `json:"message"`
}

// handleCapture starts a session: 202 on success, 409 while one is running, 400 on bad input.
// handleCapture 启动抓包会话。
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxControlMessage)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	duration := s.cfg.Capture.DefaultDuration
	if req.Duration != nil {
		duration = *req.Duration
	}

	sess, err := s.manager.RequestStart(duration)
	switch {
	case errors.Is(err, pkgerrors.ErrSessionAlreadyRunning):
		writeError(w, http.StatusConflict, err)
		return
	case errors.Is(err, pkgerrors.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusAccepted, captureResponse{
		ID:       sess.ID(),
		Duration: sess.Duration(),
		Message:  "capture started",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.manager.Status()
	writeJSON(w, http.StatusOK, struct {
		capture.Status
		Viewers int       `json:"viewers"`
		Time    time.Time `json:"time"`
	}{st, s.hub.Count(), time.Now()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
