package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/genricoloni/wozplayer/internal/domain"
	"github.com/genricoloni/wozplayer/internal/metrics"
	"github.com/genricoloni/wozplayer/internal/overlay"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// BannerSource exposes the error banner to the status endpoint
type BannerSource interface {
	State() overlay.State
}

type playRequest struct {
	MediaID string `json:"mediaId"`
	Loop    bool   `json:"loop"`
}

type preloadRequest struct {
	MediaIDs []string `json:"mediaIds"`
}

type conditionRequest struct {
	Condition string `json:"condition"`
}

type volumeRequest struct {
	Volume *float64 `json:"volume"`
}

type fadeRequest struct {
	FadeSpeed *int `json:"fadeSpeed"`
}

type result struct {
	Success   bool     `json:"success"`
	Error     string   `json:"error,omitempty"`
	Condition string   `json:"condition,omitempty"`
	Volume    *float64 `json:"volume,omitempty"`
	FadeSpeed int64    `json:"fadeSpeed,omitempty"`
	RequestID string   `json:"requestId,omitempty"`
}

type statusResponse struct {
	State   domain.PlaybackState `json:"state"`
	Banner  overlay.State        `json:"banner"`
	Clients int                  `json:"eventClients"`
}

// Server is the HTTP control API of the participant
type Server struct {
	logger  *zap.Logger
	ctrl    domain.Controller
	res     domain.Resolver
	banner  BannerSource
	metrics *metrics.Metrics
	events  *EventStream
	addr    string

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

// NewServer creates the control API. It listens on cfg.GetHTTPAddr(); an
// empty address disables it.
func NewServer(
	logger *zap.Logger,
	cfg domain.Config,
	ctrl domain.Controller,
	res domain.Resolver,
	banner BannerSource,
	m *metrics.Metrics,
	events *EventStream,
) *Server {
	return &Server{
		logger:  logger,
		ctrl:    ctrl,
		res:     res,
		banner:  banner,
		metrics: m,
		events:  events,
		addr:    cfg.GetHTTPAddr(),
	}
}

// Routes builds the router with CORS, request ids, logging and metrics
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(s.logger))
	if s.metrics != nil {
		r.Use(metrics.RequestMiddleware(s.metrics))
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/media", func(r chi.Router) {
		r.Post("/play", s.playMedia)
		r.Post("/stop", s.stopMedia)
		r.Post("/preload", s.preloadMedia)
	})
	r.Post("/condition", s.changeCondition)
	r.Post("/volume", s.setVolume)
	r.Post("/fade", s.setFadeSpeed)
	r.Get("/assets", s.assetsPath)
	r.Get("/status", s.status)
	r.Method(http.MethodGet, "/events", s.events)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{RequestIDHeader},
	})
	return c.Handler(r)
}

// Start listens and serves in a goroutine. It returns immediately.
func (s *Server) Start(ctx context.Context) error {
	if s.addr == "" {
		s.logger.Info("HTTP control API disabled")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.ln = ln
	s.srv = &http.Server{Handler: s.Routes(), ReadHeaderTimeout: 5 * time.Second}

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}(s.srv)

	s.logger.Info("HTTP control API listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, empty when not listening
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop disconnects event clients and drains the server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv, s.ln = nil, nil
	s.mu.Unlock()

	s.events.Close()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP shutdown failed: %w", err)
	}
	s.logger.Info("HTTP control API stopped")
	return nil
}

func (s *Server) playMedia(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.MediaID == "" {
		s.reply(w, r, http.StatusBadRequest, result{Error: "mediaId is required"})
		return
	}

	s.logger.Info("Play command",
		zap.String("request_id", RequestID(r.Context())),
		zap.String("media", req.MediaID),
		zap.Bool("loop", req.Loop))
	s.ctrl.PlayMedia(domain.MediaCommand{Media: domain.MediaID(req.MediaID), Loop: req.Loop})
	s.reply(w, r, http.StatusAccepted, result{Success: true})
}

func (s *Server) stopMedia(w http.ResponseWriter, r *http.Request) {
	s.ctrl.StopMedia()
	s.reply(w, r, http.StatusAccepted, result{Success: true})
}

func (s *Server) preloadMedia(w http.ResponseWriter, r *http.Request) {
	var req preloadRequest
	if !s.decode(w, r, &req) {
		return
	}
	ids := make([]domain.MediaID, len(req.MediaIDs))
	for i, id := range req.MediaIDs {
		ids[i] = domain.MediaID(id)
	}
	s.ctrl.PreloadMedia(ids)
	s.reply(w, r, http.StatusAccepted, result{Success: true})
}

func (s *Server) changeCondition(w http.ResponseWriter, r *http.Request) {
	var req conditionRequest
	if !s.decode(w, r, &req) {
		return
	}
	c := domain.Condition(req.Condition)
	if !c.Valid() {
		s.reply(w, r, http.StatusBadRequest, result{Error: "Invalid condition"})
		return
	}
	s.ctrl.ChangeCondition(c)
	s.reply(w, r, http.StatusAccepted, result{Success: true, Condition: string(c)})
}

func (s *Server) setVolume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Volume == nil {
		s.reply(w, r, http.StatusBadRequest, result{Error: "volume is required"})
		return
	}
	v := domain.ClampVolume(*req.Volume)
	s.ctrl.SetVolume(v)
	s.reply(w, r, http.StatusAccepted, result{Success: true, Volume: &v})
}

func (s *Server) setFadeSpeed(w http.ResponseWriter, r *http.Request) {
	var req fadeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.FadeSpeed == nil {
		s.reply(w, r, http.StatusBadRequest, result{Error: "fadeSpeed is required"})
		return
	}
	d := domain.ClampFadeSpeed(time.Duration(*req.FadeSpeed) * time.Millisecond)
	s.ctrl.SetFadeSpeed(d)
	s.reply(w, r, http.StatusAccepted, result{Success: true, FadeSpeed: d.Milliseconds()})
}

func (s *Server) assetsPath(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"assetsPath": s.res.AssetsRoot()})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		State:   s.ctrl.Snapshot(),
		Clients: s.events.Clients(),
	}
	if s.banner != nil {
		resp.Banner = s.banner.State()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(v); err != nil {
		s.logger.Debug("Invalid request body",
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err))
		s.reply(w, r, http.StatusBadRequest, result{Error: "invalid JSON body"})
		return false
	}
	return true
}

func (s *Server) reply(w http.ResponseWriter, r *http.Request, status int, res result) {
	res.RequestID = RequestID(r.Context())
	s.writeJSON(w, status, res)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}
