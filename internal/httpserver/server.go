package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/churnlab/modelregistry/internal/artifact"
	"github.com/churnlab/modelregistry/internal/config"
	"github.com/churnlab/modelregistry/internal/engine"
	"github.com/churnlab/modelregistry/internal/metrics"
	"github.com/churnlab/modelregistry/internal/registry"
	"github.com/churnlab/modelregistry/internal/selector"
)

type Server struct {
	cfg      config.Config
	engine   *engine.Engine
	registry *registry.Registry
}

func New(cfg config.Config, eng *engine.Engine, reg *registry.Registry) *Server {
	return &Server{cfg: cfg, engine: eng, registry: reg}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/registry", func(r chi.Router) {
		r.Get("/production", s.handleProduction)
		r.Get("/history", s.handleHistory)
		r.Group(func(r chi.Router) {
			r.Use(s.writeAuth)
			r.Post("/promote", s.handlePromote)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	status := map[string]interface{}{
		"ok":   true,
		"time": time.Now().UTC(),
	}
	if _, err := s.registry.History(ctx); err != nil {
		status["ok"] = false
		status["registry"] = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleProduction(w http.ResponseWriter, r *http.Request) {
	prod, err := s.registry.Production(r.Context())
	if err != nil {
		respondFailure(w, err)
		return
	}
	if prod == nil {
		respondError(w, http.StatusNotFound, "nothing promoted yet")
		return
	}
	respondJSON(w, http.StatusOK, prod)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.registry.History(r.Context())
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

type promoteRequest struct {
	Candidates    []string `json:"candidates"`
	PrimaryMetric string   `json:"primaryMetric"`
}

func (s *Server) handlePromote(w http.ResponseWriter, r *http.Request) {
	var req promoteRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Candidates) == 0 {
		req.Candidates = s.cfg.CandidateNames
	}
	if req.PrimaryMetric == "" {
		req.PrimaryMetric = s.cfg.PrimaryMetric
	}
	result, err := s.engine.Run(r.Context(), req.Candidates, req.PrimaryMetric)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// respondFailure maps the promotion failure taxonomy onto HTTP statuses so
// calling tooling can tell "no candidates" from "artifact missing" from
// "lock contention" without parsing error strings.
func respondFailure(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := "internal"
	switch {
	case errors.Is(err, metrics.ErrNoCandidates):
		status, kind = http.StatusNotFound, "no_candidates"
	case errors.Is(err, selector.ErrEmptyCandidates):
		status, kind = http.StatusUnprocessableEntity, "empty_candidate_set"
	case errors.Is(err, registry.ErrMissingArtifactRef):
		status, kind = http.StatusUnprocessableEntity, "missing_artifact_reference"
	case errors.Is(err, artifact.ErrArtifactMissing):
		status, kind = http.StatusNotFound, "artifact_missing"
	case errors.Is(err, registry.ErrRegistryLocked):
		status, kind = http.StatusConflict, "registry_locked"
	case errors.Is(err, registry.ErrRegistryCorrupt):
		status, kind = http.StatusInternalServerError, "registry_corrupt"
	}
	respondJSON(w, status, map[string]string{"error": err.Error(), "kind": kind})
}

// writeAuth guards mutating routes. With a JWT secret configured, a valid
// HS256 bearer token is required; otherwise the debug-token gate applies,
// falling back to requiring TLS termination with client certs.
func (s *Server) writeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.JWTSecret != "" {
			token := bearerToken(r)
			if token == "" {
				respondError(w, http.StatusUnauthorized, "bearer token required")
				return
			}
			_, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(s.cfg.JWTSecret), nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil {
				respondError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		if s.cfg.AllowDebugToken {
			if token := r.Header.Get("X-Debug-Token"); token != "" && token == s.cfg.DebugToken {
				next.ServeHTTP(w, r)
				return
			}
			respondError(w, http.StatusUnauthorized, "debug token required")
			return
		}
		if r.TLS == nil {
			respondError(w, http.StatusUnauthorized, "mtls required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[7:])
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
