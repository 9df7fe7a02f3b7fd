// Package api exposes the analysis flow as a small JSON HTTP API for clients
// other than the Telegram bot.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"nutrition-bot/internal/app"
	"nutrition-bot/internal/diary"
	"nutrition-bot/internal/norms"
	"nutrition-bot/internal/nutrition"
	"nutrition-bot/internal/profile"
	"nutrition-bot/internal/recognition"
	"nutrition-bot/internal/subscription"

	"github.com/golang-jwt/jwt/v5"
)

const maxUploadBytes = 20 << 20

// Service is the part of the app the API calls.
type Service interface {
	AnalyzeImage(ctx context.Context, sub recognition.Submission) (app.Analysis, error)
	ApplyPortion(ctx context.Context, userID, entryID int64, input string) (app.Analysis, error)
	User(ctx context.Context, userID int64) (profile.User, error)
}

// Server serves the /api/v1 routes.
type Server struct {
	svc        Service
	secret     []byte
	parserOpts []jwt.ParserOption
	now        func() time.Time
}

// NewServer creates a Server that accepts tokens signed with secret.
func NewServer(svc Service, secret []byte, opts ...jwt.ParserOption) *Server {
	return &Server{svc: svc, secret: secret, parserOpts: opts, now: time.Now}
}

// RegisterHandlers adds the API routes to mux.
func (s *Server) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/analyze", s.requireUser(s.handleAnalyze))
	mux.HandleFunc("POST /api/v1/analyses/{id}/portion", s.requireUser(s.handlePortion))
	mux.HandleFunc("GET /api/v1/norms", s.requireUser(s.handleNorms))
}

type analysisResponse struct {
	Kind      recognition.Kind  `json:"kind"`
	Found     bool              `json:"found"`
	EntryID   int64             `json:"entry_id,omitempty"`
	Record    nutrition.Record  `json:"record"`
	Insights  []string          `json:"insights,omitempty"`
	Progress  *norms.Indicators `json:"progress,omitempty"`
	Remaining *int              `json:"remaining_free,omitempty"`
}

type normsResponse struct {
	Profile *norms.Profile `json:"profile"`
	Norms   *norms.Daily   `json:"norms"`
	Manual  bool           `json:"manual"`
}

type portionRequest struct {
	Weight json.Number `json:"weight"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	data, err := readImage(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	analysis, err := s.svc.AnalyzeImage(r.Context(), recognition.Submission{
		UserID:     userIDFrom(r.Context()),
		Image:      recognition.Image{Data: data},
		ReceivedAt: s.now(),
	})
	if errors.Is(err, subscription.ErrQuotaExceeded) {
		writeError(w, http.StatusPaymentRequired, err.Error())
		return
	}
	if err != nil {
		log.Printf("API analyze failed: %v", err)
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(analysis))
}

func (s *Server) handlePortion(w http.ResponseWriter, r *http.Request) {
	entryID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown analysis")
		return
	}

	var req portionRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<10))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "body must be {\"weight\": <grams>}")
		return
	}

	analysis, err := s.svc.ApplyPortion(r.Context(), userIDFrom(r.Context()), entryID, req.Weight.String())
	switch {
	case errors.Is(err, nutrition.ErrInvalidPortion):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, diary.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		log.Printf("API portion update failed: %v", err)
		writeError(w, http.StatusInternalServerError, "portion update failed")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(analysis))
}

func (s *Server) handleNorms(w http.ResponseWriter, r *http.Request) {
	user, err := s.svc.User(r.Context(), userIDFrom(r.Context()))
	if errors.Is(err, profile.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		log.Printf("API norms failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load norms")
		return
	}
	writeJSON(w, http.StatusOK, normsResponse{Profile: user.Profile, Norms: user.Norms, Manual: user.Manual})
}

func toResponse(a app.Analysis) analysisResponse {
	resp := analysisResponse{
		Kind:     a.Result.Kind,
		Found:    a.Result.Found(),
		Record:   a.Result.Record,
		Insights: a.Insights,
		Progress: a.Indicators,
	}
	if a.Entry != nil {
		resp.Found = true
		resp.EntryID = a.Entry.ID
		resp.Record = a.Entry.Record
	}
	if !a.Quota.Subscribed && a.Quota.Limit > 0 {
		remaining := a.Quota.Remaining()
		resp.Remaining = &remaining
	}
	return resp
}

// readImage accepts a multipart form with an "image" file or a raw image body.
func readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var src io.Reader = r.Body
	if err := r.ParseMultipartForm(maxUploadBytes); err == nil {
		f, _, err := r.FormFile("image")
		if err != nil {
			return nil, errors.New("multipart form has no image field")
		}
		defer f.Close()
		src = f
	} else if !errors.Is(err, http.ErrNotMultipart) {
		return nil, err
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	return data, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
