// Package api serves the voice agent over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aslamsikder/VoiceRAG-Agent-System/agent"
	"github.com/aslamsikder/VoiceRAG-Agent-System/config"
	"github.com/aslamsikder/VoiceRAG-Agent-System/domain"
	"github.com/aslamsikder/VoiceRAG-Agent-System/ingestion"
)

const serviceName = "VoiceRAG Agent"

// Agent answers a text query.
type Agent interface {
	Process(ctx context.Context, query string) (agent.Result, error)
}

// Transcriber turns an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Indexer rebuilds and clears the document index.
type Indexer interface {
	Ingest(ctx context.Context, dir string) (ingestion.Result, error)
	Clear(ctx context.Context) error
}

type Deps struct {
	Agent       Agent
	Transcriber Transcriber
	Indexer     Indexer
}

// Server exposes HTTP handlers for the voice agent workflows.
type Server struct {
	cfg      config.Config
	deps     Deps
	logger   *zap.Logger
	validate *validator.Validate
	handler  http.Handler
}

type statusResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type voiceResponse struct {
	InputText string        `json:"input_text"`
	Response  string        `json:"response"`
	Metrics   agent.Metrics `json:"metrics"`
}

type askRequest struct {
	Question string `json:"question" validate:"required"`
}

type askResponse struct {
	Answer  string        `json:"answer"`
	Metrics agent.Metrics `json:"metrics"`
}

type ingestRequest struct {
	Dir string `json:"dir"`
}

type ingestResponse struct {
	Message   string   `json:"message"`
	Files     int      `json:"files"`
	Documents int      `json:"documents"`
	Chunks    int      `json:"chunks"`
	Skipped   []string `json:"skipped,omitempty"`
}

type clearRequest struct {
	Confirm bool `json:"confirm"`
}

func New(cfg config.Config, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{cfg: cfg, deps: deps, logger: logger, validate: validator.New()}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe runs the server until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down http server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleStatus)
	r.Get("/healthz", s.handleHealth)
	r.Post("/process_voice/", s.handleProcessVoice)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/ask", s.handleAsk)
		r.Post("/ingest", s.handleIngest)
		r.Post("/clear", s.handleClear)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "active", Service: serviceName})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

// handleProcessVoice saves the uploaded audio, transcribes it and answers
// the transcript. The temp file is removed on every path.
func (s *Server) handleProcessVoice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}
	defer file.Close()

	tempPath := filepath.Join(os.TempDir(), fmt.Sprintf("temp_%d_%s%s", time.Now().Unix(), uuid.NewString(), filepath.Ext(header.Filename)))
	defer func() {
		if err := os.Remove(tempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("remove temp audio", zap.String("path", tempPath), zap.Error(err))
		}
	}()

	if err := saveUpload(file, tempPath); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("save upload: %w", err))
		return
	}

	ctx := r.Context()
	sttStart := time.Now()
	text, err := s.deps.Transcriber.Transcribe(ctx, tempPath)
	sttTime := time.Since(sttStart)
	if err != nil {
		s.writeError(w, statusFor(err), fmt.Errorf("transcribe: %w", err))
		return
	}
	if strings.TrimSpace(text) == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("Could not transcribe audio."))
		return
	}

	res, err := s.deps.Agent.Process(ctx, text)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	res.Metrics.STTTime = sttTime

	s.writeJSON(w, http.StatusOK, voiceResponse{
		InputText: text,
		Response:  res.Answer,
		Metrics:   res.Metrics,
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("question is required"))
		return
	}

	res, err := s.deps.Agent.Process(r.Context(), req.Question)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, askResponse{Answer: res.Answer, Metrics: res.Metrics})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	dir := strings.TrimSpace(req.Dir)
	if dir == "" {
		dir = s.cfg.DataDir
	}
	s.logger.Info("ingesting documents", zap.String("dir", dir))

	res, err := s.deps.Indexer.Ingest(r.Context(), dir)
	if err != nil {
		s.writeError(w, statusFor(err), fmt.Errorf("ingestion failed: %w", err))
		return
	}

	msg := "ingestion complete"
	if !res.Built() {
		msg = "no documents found, index unchanged"
	}
	s.writeJSON(w, http.StatusOK, ingestResponse{
		Message:   msg,
		Files:     res.Files,
		Documents: res.Documents,
		Chunks:    res.Chunks,
		Skipped:   res.Skipped,
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if !req.Confirm {
		s.writeError(w, http.StatusBadRequest, errors.New("confirm must be true to clear data"))
		return
	}

	if err := s.deps.Indexer.Clear(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("clear index: %w", err))
		return
	}
	s.logger.Info("index cleared")
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "index cleared"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("api error", zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Info("api error", zap.Int("status", status), zap.Error(err))
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps domain failures onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, agent.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func saveUpload(src io.Reader, path string) error {
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}

	return nil
}
