package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sjawhar/kalakaar/internal/auth"
	"github.com/sjawhar/kalakaar/internal/blob"
	"github.com/sjawhar/kalakaar/internal/content"
	"github.com/sjawhar/kalakaar/internal/flow"
	"github.com/sjawhar/kalakaar/internal/imaging"
	"github.com/sjawhar/kalakaar/internal/metrics"
	"github.com/sjawhar/kalakaar/internal/session"
	"github.com/sjawhar/kalakaar/internal/storage"
)

// Sessions runs the interview.
type Sessions interface {
	Start(ctx context.Context, userID int64) (session.StartResult, error)
	Respond(ctx context.Context, userID int64, sessionID string, audio []byte, mimeType string) (session.TurnResult, error)
	Get(ctx context.Context, userID int64, sessionID string) (session.Session, error)
	Script() flow.Script
}

// Store is the persistence the HTTP layer needs beyond sessions.
type Store interface {
	CreateUser(ctx context.Context, u storage.User) (storage.User, error)
	GetUserByEmail(ctx context.Context, email string) (storage.User, error)
	GetUserByID(ctx context.Context, id int64) (storage.User, error)
	SaveArtifacts(ctx context.Context, sessionID string, ownerUserID int64, artifacts []storage.Artifact) ([]storage.Artifact, error)
	ListArtifacts(ctx context.Context, sessionID string, ownerUserID int64) ([]storage.Artifact, error)
	SaveContent(ctx context.Context, ownerUserID int64, c storage.Content) error
	GetContent(ctx context.Context, sessionID string, ownerUserID int64) (storage.Content, error)
	Ping(ctx context.Context) error
}

type Deps struct {
	Sessions  Sessions
	Store     Store
	Blob      blob.Store
	Assembler *content.Assembler
	Enhancer  *imaging.Enhancer
	Issuer    *auth.Issuer
	// Fallback resolves the demo identity for anonymous requests; nil
	// rejects them.
	Fallback auth.Fallback
	Hub      *Hub
	Exports  *storage.Writer

	// Adapters reports which external adapters are configured.
	Adapters       map[string]bool
	Warnings       []string
	CORSOrigins    []string
	MaxUploadBytes int64
	// HTTPClient fetches absolute image URLs that are not in blob storage.
	HTTPClient *http.Client
	Logger     zerolog.Logger
	Now        func() time.Time
}

type api struct {
	Deps
	upgrader websocket.Upgrader
}

func NewRouter(d Deps) http.Handler {
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 10 << 20
	}
	if d.HTTPClient == nil {
		d.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Hub == nil {
		d.Hub = NewHub(d.Logger)
	}
	a := &api{Deps: d, upgrader: newUpgrader(d.CORSOrigins)}

	r := chi.NewRouter()
	r.Use(Logger(d.Logger))
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(AccessLog)
	r.Use(metrics.InstrumentHandler)
	r.Use(CORS(d.CORSOrigins))

	r.Get("/api/health", a.health)
	r.Get("/api/platforms", a.platforms)
	r.Post("/api/signup", a.signup)
	r.Post("/api/login", a.login)
	r.Post("/api/logout", a.logout)
	r.Get("/files/*", a.serveFile)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(d.Issuer, d.Fallback, writeError))

		r.Get("/api/me", a.me)
		r.Post("/api/conversation/start", a.startConversation)
		r.Post("/api/conversation/respond", a.respond)
		r.Post("/api/conversation/generate", a.generateContent)
		r.Get("/api/conversation/{id}", a.getConversation)
		r.Get("/api/conversation/{id}/content", a.getContent)
		r.Get("/api/conversation/{id}/artifacts", a.listArtifacts)
		r.Post("/api/upload_image", a.uploadImage)
		r.Post("/api/enhance-image", a.enhanceImage)
		r.Post("/api/generate-images", a.generateImages)
		r.Get("/ws", a.websocket)
	})

	return r
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(addr string, handler http.Handler, log zerolog.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		log: log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
