package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/ivoox-scraper/internal/jobs"
	"github.com/JakeFAU/ivoox-scraper/internal/storage"
)

// Responses follow the original AJAX contract: SUCCESS carries data,
// PROCESSING carries a pollable job id, ERROR carries a message.
type scrapeResponse struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data,omitempty"`
	JobID   string          `json:"task_id,omitempty"`
	Message string          `json:"message,omitempty"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing 'query'")
		return
	}
	s.handleScrape(w, r, jobs.Request{Kind: jobs.KindSearch, Query: query})
}

func (s *Server) episodes(w http.ResponseWriter, r *http.Request) {
	podcastID := chi.URLParam(r, "podcast_id")
	if podcastID == "" {
		writeError(w, http.StatusBadRequest, "missing podcast id")
		return
	}
	s.handleScrape(w, r, jobs.Request{Kind: jobs.KindEpisodes, PodcastID: podcastID})
}

func (s *Server) audioLinks(w http.ResponseWriter, r *http.Request) {
	listingURL := r.URL.Query().Get("url")
	if listingURL == "" {
		writeError(w, http.StatusBadRequest, "missing 'url'")
		return
	}
	s.handleScrape(w, r, jobs.Request{Kind: jobs.KindAudio, ListingURL: listingURL})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request, req jobs.Request) {
	outcome, err := s.orch.HandleRequest(r.Context(), req)
	if err != nil {
		s.logger.Error("handle scrape request", zap.String("kind", string(req.Kind)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "request handling failed")
		return
	}
	switch outcome.Status {
	case jobs.OutcomeReady:
		writeJSON(w, http.StatusOK, scrapeResponse{Status: "SUCCESS", Data: outcome.Data})
	case jobs.OutcomeProcessing:
		writeJSON(w, http.StatusAccepted, scrapeResponse{Status: "PROCESSING", JobID: outcome.JobID})
	case jobs.OutcomeFailed:
		writeJSON(w, http.StatusBadGateway, scrapeResponse{Status: "ERROR", Message: "scrape failed: " + outcome.Cause})
	default:
		writeError(w, http.StatusInternalServerError, "unknown outcome")
	}
}

func (s *Server) jobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	rec, err := s.orch.GetJobStatus(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	switch rec.State {
	case jobs.StateSucceeded:
		writeJSON(w, http.StatusOK, scrapeResponse{Status: "SUCCESS", Data: rec.Result})
	case jobs.StateFailed:
		writeJSON(w, http.StatusOK, scrapeResponse{Status: "ERROR", Message: "scrape job failed: " + rec.Error})
	default:
		writeJSON(w, http.StatusOK, scrapeResponse{Status: "PROCESSING", JobID: rec.ID})
	}
}

type toggleFavoriteRequest struct {
	UserID    string `json:"user_id"`
	IvooxID   string `json:"ivoox_id"`
	Name      string `json:"name"`
	URL       string `json:"ivoox_url"`
	Thumbnail string `json:"thumbnail_url"`
}

func (s *Server) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	var req toggleFavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == "" || req.IvooxID == "" {
		writeError(w, http.StatusBadRequest, "user_id and ivoox_id required")
		return
	}
	added, err := s.favorites.Toggle(r.Context(), storage.Favorite{
		UserID:    req.UserID,
		IvooxID:   req.IvooxID,
		Name:      req.Name,
		URL:       req.URL,
		Thumbnail: req.Thumbnail,
	})
	if err != nil {
		s.logger.Error("toggle favorite", zap.String("ivoox_id", req.IvooxID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "toggle failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "SUCCESS", "added": added})
}

func (s *Server) listFavorites(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing 'user_id'")
		return
	}
	favorites, err := s.favorites.List(r.Context(), userID)
	if err != nil {
		s.logger.Error("list favorites", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	if favorites == nil {
		favorites = []storage.Favorite{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "SUCCESS", "data": favorites})
}
