package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"rag-chatbot/internal/config"
	"rag-chatbot/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// SessionCookie carries the browser's session id
const SessionCookie = "rag_session"

// Server serves the upload/question page and its JSON API
type Server struct {
	cfg       *config.Config
	store     *session.Store
	router    *gin.Engine
	startedAt time.Time
}

func NewServer(cfg *config.Config, store *session.Store) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.Use(RequestLogger(), gin.Recovery())
	router.SetHTMLTemplate(tmpl)
	router.MaxMultipartMemory = cfg.Server.MaxUploadMB << 20

	s := &Server{
		cfg:       cfg,
		store:     store,
		router:    router,
		startedAt: time.Now(),
	}

	router.GET("/", s.Index)
	router.POST("/upload", s.Upload)
	router.POST("/ask", s.Ask)
	router.GET("/healthz", s.Health)

	v1 := router.Group("/api/v1")
	v1.POST("/documents", s.UploadDocument)
	v1.POST("/ask", s.AskQuestion)
	v1.DELETE("/session", s.DeleteSession)

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on the configured address until ctx is done, then shuts down
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.HTTPAddr(),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}

func (s *Server) Health(c *gin.Context) {
	OK(c, gin.H{
		"status":     "ok",
		"sessions":   s.store.Len(),
		"uptime_sec": int(time.Since(s.startedAt).Seconds()),
	})
}
