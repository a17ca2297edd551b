// Package collector is a minimal collector endpoint that accepts recordings
// uploaded as multipart/form-data and stores them on local disk.
package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bft-labs/audioship/pkg/log"
)

// SuccessMessage is the body returned for an accepted upload.
const SuccessMessage = "File uploaded successfully."

// Config controls the collector.
type Config struct {
	Addr           string
	UploadDir      string
	FieldName      string
	MaxUploadBytes int64
}

// DefaultConfig listens on :5000 and stores into ./uploads.
func DefaultConfig() Config {
	return Config{
		Addr:           ":5000",
		UploadDir:      "uploads",
		FieldName:      "file",
		MaxUploadBytes: 64 << 20,
	}
}

// Server accepts uploads.
type Server struct {
	cfg    Config
	logger log.Logger
	engine *gin.Engine
}

// New prepares the upload directory and routes.
func New(cfg Config, logger log.Logger) (*Server, error) {
	if cfg.UploadDir == "" {
		return nil, errors.New("upload dir is required")
	}
	if cfg.FieldName == "" {
		cfg.FieldName = "file"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{cfg: cfg, logger: logger, engine: gin.New()}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.engine.POST("/upload", s.handleUpload)
	s.engine.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return s, nil
}

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("collector listening",
			log.String("addr", s.cfg.Addr),
			log.String("upload_dir", s.cfg.UploadDir))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown collector: %w", err)
		}
		return nil
	}
}

func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)

	fh, err := c.FormFile(s.cfg.FieldName)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.String(http.StatusRequestEntityTooLarge, "upload exceeds %d bytes", s.cfg.MaxUploadBytes)
			return
		}
		c.String(http.StatusBadRequest, "missing %q file field", s.cfg.FieldName)
		return
	}

	name := filepath.Base(fh.Filename)
	if name == "." || name == string(filepath.Separator) {
		name = "recording"
	}
	dst := filepath.Join(s.cfg.UploadDir, uuid.NewString()+"-"+name)

	if err := c.SaveUploadedFile(fh, dst); err != nil {
		s.logger.Error("store upload", log.String("file", name), log.Err(err))
		c.String(http.StatusInternalServerError, "failed to store upload")
		return
	}

	s.logger.Info("upload stored",
		log.String("file", name),
		log.String("path", dst),
		log.Int64("bytes", fh.Size),
		log.String("content_type", fh.Header.Get("Content-Type")))
	c.String(http.StatusOK, SuccessMessage)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			log.String("method", c.Request.Method),
			log.String("path", c.Request.URL.Path),
			log.Int("status", c.Writer.Status()),
			log.Duration("took", time.Since(start)))
	}
}
