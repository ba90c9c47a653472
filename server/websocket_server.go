package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/room4-2/interactive-avatar/config"
	"github.com/room4-2/interactive-avatar/logging"
	"github.com/room4-2/interactive-avatar/messages"
	"github.com/room4-2/interactive-avatar/pipeline"
	"github.com/room4-2/interactive-avatar/session"
)

const banner = "Interactive Avatar server. Connect a client to /ws.\n"

type Server struct {
	httpServer     *http.Server
	upgrader       websocket.Upgrader
	sessionManager *session.Manager
	config         *config.Config
	services       map[string]string
	limiter        *ipLimiter
	logger         zerolog.Logger
	stopSweep      context.CancelFunc
}

// NewServer builds the HTTP server. services names the provider behind
// each pipeline stage and is reported by /health.
func NewServer(cfg *config.Config, sessionManager *session.Manager, services map[string]string, logger zerolog.Logger) *Server {
	s := &Server{
		sessionManager: sessionManager,
		config:         cfg,
		services:       services,
		limiter:        newIPLimiter(cfg.RateLimitPerMin, cfg.RateLimitBurst),
		logger:         logging.Component(logger, "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024, // 64KB for audio chunks
			WriteBufferSize: 16 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range cfg.AllowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopSweep = cancel
	go s.limiter.sweep(ctx)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routing table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.limiter.middleware(s.handleWebSocket))
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc(pipeline.VideoRoute, s.handleVideo)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", s.handleIndex)
	return mux
}

// Start begins listening for connections
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.config.Addr()).Msg("🚀 Interactive Avatar server starting")
	s.logger.Info().Msgf("📡 WebSocket endpoint: ws://localhost:%d/ws", s.config.Port)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("🛑 Shutting down server...")
	s.stopSweep()
	s.sessionManager.Shutdown(ctx)
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	clientSession, err := s.sessionManager.CreateSession(r.Context(), conn)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to create session")
		if data, encErr := messages.Encode(messages.NewErrorMessage(messages.ErrCodeSessionFailed, err.Error())); encErr == nil {
			_ = conn.WriteMessage(websocket.TextMessage, data)
		}
		conn.Close()
		return
	}

	short := logging.ShortID(clientSession.ID)
	s.logger.Info().Str("session", short).Str("remote", clientIP(r)).Msg("✅ New session created")

	clientSession.Start()
	<-clientSession.CloseChan

	if err := s.sessionManager.RemoveSession(context.Background(), clientSession.ID); err != nil {
		s.logger.Warn().Err(err).Str("session", short).Msg("Failed to remove session from Redis")
	}
	s.logger.Info().Str("session", short).Msg("🔌 Session closed")
}

type healthResponse struct {
	Status    string            `json:"status"`
	Services  map[string]bool   `json:"services"`
	Providers map[string]string `json:"providers"`
	Sessions  int               `json:"sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "healthy",
		Services:  make(map[string]bool, len(s.services)),
		Providers: s.services,
		Sessions:  s.sessionManager.GetActiveSessionCount(),
	}
	for stage, provider := range s.services {
		resp.Services[stage] = provider != ""
	}

	data, err := sonic.Marshal(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleVideo serves a generated mp4 from the output directory
func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, pipeline.VideoRoute)
	if !validVideoName(name) {
		http.Error(w, "Video not found", http.StatusNotFound)
		return
	}

	path := filepath.Join(s.config.OutputDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.Error(w, "Video not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, path)
}

func validVideoName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), ".mp4")
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.config.WebDir != "" {
		if _, err := os.Stat(filepath.Join(s.config.WebDir, "index.html")); err == nil {
			http.FileServer(http.Dir(s.config.WebDir)).ServeHTTP(w, r)
			return
		}
	}
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(banner))
}
