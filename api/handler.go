package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raushankrgupta/product-image-scraper/models"
	"github.com/raushankrgupta/product-image-scraper/sheet"
	"github.com/raushankrgupta/product-image-scraper/utils"
)

// maxAPIURLs bounds a single JSON request
const maxAPIURLs = 5000

type scrapeRequest struct {
	URLs []string `json:"urls"`
}

// Summary counts outcomes of a batch
type Summary struct {
	Total    int `json:"total"`
	Found    int `json:"found"`
	NotFound int `json:"not_found"`
	Failed   int `json:"failed"`
}

type scrapeResponse struct {
	RunID   string          `json:"run_id"`
	Summary Summary         `json:"summary"`
	Results []models.Result `json:"results"`
}

// Summarize counts the outcomes in results
func Summarize(results []models.Result) Summary {
	sum := Summary{Total: len(results)}
	for _, r := range results {
		switch {
		case r.Failed():
			sum.Failed++
		case r.Found():
			sum.Found++
		default:
			sum.NotFound++
		}
	}
	return sum
}

// ScrapeAPIHandler resolves image links for a JSON list of page URLs.
// ?format=csv returns the result file instead of JSON.
func (s *Server) ScrapeAPIHandler(w http.ResponseWriter, r *http.Request) {
	runID := uuid.NewString()
	logger := s.logger.With(zap.String("run_id", runID))

	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, logger, "Please provide a JSON body with a 'urls' array", http.StatusBadRequest)
		return
	}
	if len(req.URLs) == 0 {
		utils.RespondError(w, logger, "'urls' must not be empty", http.StatusBadRequest)
		return
	}
	if len(req.URLs) > maxAPIURLs {
		utils.RespondError(w, logger, fmt.Sprintf("at most %d urls per request", maxAPIURLs), http.StatusBadRequest)
		return
	}
	for i, u := range req.URLs {
		if strings.TrimSpace(u) == "" {
			utils.RespondError(w, logger, fmt.Sprintf("url at index %d is empty", i), http.StatusBadRequest)
			return
		}
	}

	logger.Info("Scrape API request", zap.Int("urls", len(req.URLs)))

	results, ok, err := s.runBatch(r.Context(), req.URLs, nil)
	if !ok {
		utils.RespondError(w, logger, "another scraping run is in progress", http.StatusConflict)
		return
	}
	if err != nil {
		logger.Error("Scraping run failed", zap.Error(err))
		utils.RespondError(w, logger, fmt.Sprintf("Scraping failed: %v", err), http.StatusInternalServerError)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		writeCSV(w, logger, results)
		return
	}

	utils.RespondJSON(w, http.StatusOK, scrapeResponse{
		RunID:   runID,
		Summary: Summarize(results),
		Results: results,
	})
}

func writeCSV(w http.ResponseWriter, logger *zap.Logger, results []models.Result) {
	data, err := sheet.EncodeResults(results)
	if err != nil {
		utils.RespondError(w, logger, "Error encoding results", http.StatusInternalServerError)
		return
	}
	serveCSV(w, data)
}

func serveCSV(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sheet.DownloadName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
