package api

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/raushankrgupta/product-image-scraper/models"
	"github.com/raushankrgupta/product-image-scraper/scrapers"
	"github.com/raushankrgupta/product-image-scraper/sheet"
	"github.com/raushankrgupta/product-image-scraper/utils"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	// UploadTTL is how long an uploaded table waits for its column selection
	UploadTTL = 30 * time.Minute
	// ResultTTL is how long an undownloaded result file is kept
	ResultTTL = 30 * time.Minute
)

// Extractor resolves image links for a batch of page URLs
type Extractor interface {
	Extract(ctx context.Context, urls []string) ([]models.Result, error)
}

// ExtractorFactory builds the extractor for one run, wired to its progress observer
type ExtractorFactory func(progress scrapers.ProgressFunc) Extractor

// Exporter publishes a result file and returns a link to it
type Exporter interface {
	Export(ctx context.Context, name string, body []byte) (string, error)
}

// Options configures a Server
type Options struct {
	NewExtractor   ExtractorFactory
	Exporter       Exporter // nil serves downloads from memory
	Logger         *zap.Logger
	Gatherer       prometheus.Gatherer
	JWTSecret      string // empty disables API authentication
	MaxUploadBytes int64
}

// Server is the operator-facing HTTP shell around the extractor
type Server struct {
	newExtractor ExtractorFactory
	exporter     Exporter
	logger       *zap.Logger
	gatherer     prometheus.Gatherer
	jwtSecret    string
	maxUpload    int64

	uploads   *memoryStore[*uploadedTable]
	downloads *memoryStore[[]byte]
	running   atomic.Bool
	templates *template.Template
}

type uploadedTable struct {
	filename string
	table    *sheet.Table
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}

	return &Server{
		newExtractor: opts.NewExtractor,
		exporter:     opts.Exporter,
		logger:       logger,
		gatherer:     gatherer,
		jwtSecret:    opts.JWTSecret,
		maxUpload:    maxUpload,
		uploads:      newMemoryStore[*uploadedTable](UploadTTL),
		downloads:    newMemoryStore[[]byte](ResultTTL),
		templates:    template.Must(template.ParseFS(templateFS, "templates/*.html")),
	}
}

// Routes registers every endpoint
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.IndexHandler)
	mux.HandleFunc("POST /upload", s.UploadHandler)
	mux.HandleFunc("POST /scrape-images", s.ScrapeImagesHandler)
	mux.HandleFunc("GET /download/{id}", s.DownloadHandler)

	mux.Handle("POST /api/scrape", s.authMiddleware(http.HandlerFunc(s.ScrapeAPIHandler)))

	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return utils.CORSMiddleware(utils.LatencyMiddleware(s.logger, mux))
}

// authMiddleware requires a bearer JWT when a secret is configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	if s.jwtSecret == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			utils.RespondError(w, s.logger, "missing bearer token", http.StatusUnauthorized)
			return
		}
		subject, err := utils.ValidateToken(s.jwtSecret, tokenString)
		if err != nil {
			utils.RespondError(w, s.logger, "invalid token", http.StatusUnauthorized)
			return
		}
		s.logger.Debug("Authenticated API client", zap.String("subject", subject))
		next.ServeHTTP(w, r)
	})
}

// runBatch runs one extraction with the single-run guard held.
// It returns ok=false when another batch is already running.
func (s *Server) runBatch(ctx context.Context, urls []string, progress scrapers.ProgressFunc) (results []models.Result, ok bool, err error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, false, nil
	}
	defer s.running.Store(false)

	// Once started a batch runs to completion, even if the client goes away
	results, err = s.newExtractor(progress).Extract(context.WithoutCancel(ctx), urls)
	return results, true, err
}
