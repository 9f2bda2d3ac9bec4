package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raushankrgupta/product-image-scraper/models"
	"github.com/raushankrgupta/product-image-scraper/sheet"
)

type indexPage struct {
	Error string
}

type columnsPage struct {
	UploadID string
	Filename string
	Rows     int
	Columns  []string
}

type resultsPage struct {
	Progress     []progressLine
	Results      []models.Result
	Summary      Summary
	DownloadURL  string
	DownloadName string
}

type progressLine struct {
	Message string
	Failed  bool
}

// IndexHandler shows the upload form
func (s *Server) IndexHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "index.html", indexPage{})
}

// UploadHandler parses the uploaded spreadsheet and asks for the URL column
func (s *Server) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		s.renderError(w, http.StatusBadRequest, "Upload could not be read: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.renderError(w, http.StatusBadRequest, "Please choose a CSV or XLSX file")
		return
	}
	defer file.Close()

	table, err := sheet.Read(header.Filename, file)
	if err != nil {
		s.renderError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := s.uploads.Put(&uploadedTable{filename: header.Filename, table: table})
	s.logger.Info("Spreadsheet uploaded",
		zap.String("upload_id", id),
		zap.String("filename", header.Filename),
		zap.Int("rows", table.Len()),
	)

	s.render(w, http.StatusOK, "columns.html", columnsPage{
		UploadID: id,
		Filename: header.Filename,
		Rows:     table.Len(),
		Columns:  table.Columns(),
	})
}

// ScrapeImagesHandler runs the extractor over the selected column and shows the results
func (s *Server) ScrapeImagesHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Invalid form submission")
		return
	}

	upload, ok := s.uploads.Get(r.PostForm.Get("upload_id"))
	if !ok {
		s.renderError(w, http.StatusNotFound, "Upload not found or expired, please upload the file again")
		return
	}

	urls, err := upload.table.Column(r.PostForm.Get("column"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, sheet.ErrUnknownColumn) {
			status = http.StatusBadRequest
		}
		s.renderError(w, status, err.Error())
		return
	}
	if len(urls) == 0 {
		s.renderError(w, http.StatusBadRequest, "The selected column has no URLs")
		return
	}

	runID := uuid.NewString()
	logger := s.logger.With(zap.String("run_id", runID))
	logger.Info("Scraping started", zap.String("filename", upload.filename), zap.Int("urls", len(urls)))

	var lines []progressLine
	results, ok, err := s.runBatch(r.Context(), urls, func(p models.Progress) {
		lines = append(lines, progressLine{Message: p.Message(), Failed: p.Err != nil})
	})
	if !ok {
		s.renderError(w, http.StatusConflict, "Another scraping run is in progress, try again when it finishes")
		return
	}
	if err != nil {
		logger.Error("Scraping run failed", zap.Error(err))
		s.renderError(w, http.StatusInternalServerError, "Scraping failed: "+err.Error())
		return
	}

	data, err := sheet.EncodeResults(results)
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, "Error encoding results")
		return
	}

	downloadURL := ""
	if s.exporter != nil {
		downloadURL, err = s.exporter.Export(r.Context(), runID+".csv", data)
		if err != nil {
			logger.Warn("Export failed, serving download from memory", zap.Error(err))
			downloadURL = ""
		}
	}
	if downloadURL == "" {
		downloadURL = "/download/" + s.downloads.Put(data)
	}

	summary := Summarize(results)
	logger.Info("Done!",
		zap.Int("found", summary.Found),
		zap.Int("not_found", summary.NotFound),
		zap.Int("failed", summary.Failed),
	)

	s.render(w, http.StatusOK, "results.html", resultsPage{
		Progress:     lines,
		Results:      results,
		Summary:      summary,
		DownloadURL:  downloadURL,
		DownloadName: sheet.DownloadName,
	})
}

// DownloadHandler serves a result file once, then forgets it
func (s *Server) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	data, ok := s.downloads.Take(r.PathValue("id"))
	if !ok {
		http.Error(w, "download not found or already retrieved", http.StatusNotFound)
		return
	}
	serveCSV(w, data)
}

func (s *Server) renderError(w http.ResponseWriter, status int, message string) {
	s.logger.Warn("Request failed", zap.String("error", message), zap.Int("status", status))
	s.render(w, status, "index.html", indexPage{Error: message})
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("Failed to render template", zap.String("template", name), zap.Error(err))
	}
}
