// Package api exposes the identification client over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/verdant-ai/verdant/pkg/config"
	"github.com/verdant-ai/verdant/pkg/identify"
	"github.com/verdant-ai/verdant/pkg/ledger"
	"github.com/verdant-ai/verdant/pkg/logger"
	"github.com/verdant-ai/verdant/pkg/models"
	"github.com/verdant-ai/verdant/pkg/provider"
)

// defaultMaxRequestBytes bounds request bodies when no body limit is configured.
const defaultMaxRequestBytes = 8 << 20

// CacheStats reports result cache metrics.
type CacheStats interface {
	Stats(ctx context.Context) (models.CacheStats, error)
}

// Server is the Verdant HTTP API.
type Server struct {
	cfg        *config.Config
	client     *identify.Client
	cacheStats CacheStats
	router     chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithCacheStats exposes cache metrics at /v1/cache/stats.
func WithCacheStats(c CacheStats) Option {
	return func(s *Server) { s.cacheStats = c }
}

// New creates a Server wired to client.
func New(cfg *config.Config, client *identify.Client, opts ...Option) *Server {
	s := &Server{cfg: cfg, client: client}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/v1", func(r chi.Router) {
		r.Post("/identify", s.handleResolve(models.FeatureIdentify))
		r.Post("/diagnose", s.handleResolve(models.FeatureDiagnose))
		r.Post("/chat", s.handleResolve(models.FeatureChat))
		r.Get("/usage/{user}", s.handleUsage)
		r.Put("/usage/{user}/tier", s.handleSetTier)
		if s.cacheStats != nil {
			r.Get("/cache/stats", s.handleCacheStats)
		}
	})
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", s.cfg.Listen).Info("verdant api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

// resolveRequest is the body of the identify, diagnose and chat endpoints.
// Image is a path, data: URI or URL; ImageData carries base64 bytes instead.
type resolveRequest struct {
	User      string `json:"user"`
	Image     string `json:"image"`
	ImageData []byte `json:"image_data"`
	Hint      string `json:"hint"`
	Question  string `json:"question"`
}

func (s *Server) handleResolve(feature models.Feature) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := int64(s.cfg.Orchestrator.MaxBodyBytes)
		if limit <= 0 {
			limit = defaultMaxRequestBytes
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeJSONError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
				return
			}
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "failed to read request body")
			return
		}

		var req resolveRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Image) == "" && len(req.ImageData) == 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "image or image_data is required")
			return
		}
		if req.Image != "" && !provider.IsRemote(req.Image) {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "image must be an http(s) URL or data: URI")
			return
		}

		contextText := req.Hint
		if feature == models.FeatureChat {
			contextText = req.Question
			if strings.TrimSpace(contextText) == "" {
				writeJSONError(w, http.StatusBadRequest, "invalid_request", "question is required")
				return
			}
		}

		res, err := s.client.Do(r.Context(), s.user(r, req.User), models.IdentificationRequest{
			ImageRef:    req.Image,
			ImageData:   req.ImageData,
			Feature:     feature,
			ContextText: contextText,
		})
		if err != nil {
			s.writeLedgerError(w, err)
			return
		}
		w.Header().Set("X-Verdant-Source", string(res.Source))
		writeJSON(w, http.StatusOK, res)
	}
}

type usageResponse struct {
	User           string               `json:"user"`
	Tier           models.Tier          `json:"tier"`
	Usage          []models.UsageStatus `json:"usage"`
	ResetInSeconds int64                `json:"reset_in_seconds"`
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	s.writeUsage(w, r, user)
}

func (s *Server) writeUsage(w http.ResponseWriter, r *http.Request, user string) {
	tier, statuses, err := s.client.Status(r.Context(), user)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	left, err := s.client.TimeUntilReset(r.Context(), user)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, usageResponse{
		User:           user,
		Tier:           tier,
		Usage:          statuses,
		ResetInSeconds: int64(math.Ceil(left.Seconds())),
	})
}

func (s *Server) handleSetTier(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	var body struct {
		Tier string `json:"tier"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	tier, err := models.ParseTier(body.Tier)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.client.SetTier(r.Context(), user, tier); err != nil {
		s.writeLedgerError(w, err)
		return
	}
	s.writeUsage(w, r, user)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cacheStats.Stats(r.Context())
	if err != nil {
		logger.WithError(err).Error("cache stats failed")
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "cache stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// user picks the caller identity: body field, then header, then the configured default.
func (s *Server) user(r *http.Request, fromBody string) string {
	if u := strings.TrimSpace(fromBody); u != "" {
		return u
	}
	if u := strings.TrimSpace(r.Header.Get("X-Verdant-User")); u != "" {
		return u
	}
	return s.cfg.Usage.DefaultUser
}

func (s *Server) writeLedgerError(w http.ResponseWriter, err error) {
	var qerr *ledger.QuotaError
	if errors.As(err, &qerr) {
		secs := int64(math.Ceil(qerr.ResetIn.Seconds()))
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error": map[string]any{
				"message":          qerr.Error(),
				"type":             "quota_exceeded",
				"code":             http.StatusTooManyRequests,
				"feature":          qerr.Feature,
				"window":           qerr.Window,
				"limit":            qerr.Limit,
				"reset_in_seconds": secs,
			},
		})
		return
	}
	logger.WithError(err).Error("request failed")
	writeJSONError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Warn("write response failed")
	}
}

func writeJSONError(w http.ResponseWriter, code int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":%q,"code":%d}}`, message, kind, code)
}
