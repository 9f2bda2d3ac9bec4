package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raushankrgupta/product-image-scraper/models"
	"github.com/raushankrgupta/product-image-scraper/scrapers"
	"github.com/raushankrgupta/product-image-scraper/utils"
)

// stubExtractor maps every URL to a canned image field
type stubExtractor struct {
	images map[string]string
	err    error

	// started is closed when Extract begins; block holds it until closed
	started chan struct{}
	block   chan struct{}

	mu       sync.Mutex
	progress scrapers.ProgressFunc
	gotURLs  []string
}

func (s *stubExtractor) setProgress(fn scrapers.ProgressFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = fn
}

func (s *stubExtractor) urls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gotURLs
}

func (s *stubExtractor) Extract(ctx context.Context, urls []string) ([]models.Result, error) {
	s.mu.Lock()
	s.gotURLs = urls
	progress := s.progress
	s.mu.Unlock()

	if s.started != nil {
		close(s.started)
	}
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, s.err
	}
	results := make([]models.Result, len(urls))
	for i, u := range urls {
		img, ok := s.images[u]
		if !ok {
			img = models.ImageNotFound
		}
		results[i] = models.Result{ProductPageURL: u, ImageURL: img}
		if progress != nil {
			var err error
			if results[i].Failed() {
				err = errors.New(img)
			}
			progress(models.Progress{Index: i, Total: len(urls), URL: u, Result: results[i], Err: err})
		}
	}
	return results, nil
}

type stubExporter struct {
	link string
	err  error
	body []byte
}

func (s *stubExporter) Export(ctx context.Context, name string, body []byte) (string, error) {
	s.body = body
	return s.link, s.err
}

func newTestServer(t *testing.T, stub *stubExtractor, opts Options) *Server {
	t.Helper()
	opts.NewExtractor = func(progress scrapers.ProgressFunc) Extractor {
		stub.setProgress(progress)
		return stub
	}
	opts.Gatherer = prometheus.NewRegistry()
	return NewServer(opts)
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

var uploadIDPattern = regexp.MustCompile(`name="upload_id" value="([^"]+)"`)
var downloadPattern = regexp.MustCompile(`href="(/download/[^"]+)"`)

func TestUploadScrapeDownloadFlow(t *testing.T) {
	stub := &stubExtractor{images: map[string]string{
		"https://a.example/p1": "https://media.secure-mobiles.com/product-images/x.jpg",
		"https://a.example/p3": "Error: navigate https://a.example/p3: context deadline exceeded",
	}}
	handler := newTestServer(t, stub, Options{}).Routes()

	// Upload
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, uploadRequest(t, "products.csv",
		"name,url\nA,https://a.example/p1\nB,https://a.example/p2\nC,\nD,https://a.example/p3\n"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `<option value="url">url</option>`)

	m := uploadIDPattern.FindStringSubmatch(rec.Body.String())
	require.Len(t, m, 2)

	// Scrape
	form := url.Values{"upload_id": {m[1]}, "column": {"url"}}
	req := httptest.NewRequest(http.MethodPost, "/scrape-images", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, []string{"https://a.example/p1", "https://a.example/p2", "https://a.example/p3"}, stub.urls())
	page := rec.Body.String()
	assert.Contains(t, page, "Scraped: https://a.example/p1")
	assert.Contains(t, page, "Failed: https://a.example/p3")
	assert.Contains(t, page, "1 found, 1 not found, 1 failed")

	link := downloadPattern.FindStringSubmatch(page)
	require.Len(t, link, 2)

	// Download once
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, link[1], nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "scraped_images.csv")
	assert.Equal(t,
		"product_page_url,image_url\n"+
			"https://a.example/p1,https://media.secure-mobiles.com/product-images/x.jpg\n"+
			"https://a.example/p2,Image not found\n"+
			"https://a.example/p3,Error: navigate https://a.example/p3: context deadline exceeded\n",
		rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, link[1], nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "downloads are served once")
}

func TestUploadHandler_RejectsBadFiles(t *testing.T) {
	handler := newTestServer(t, &stubExtractor{}, Options{}).Routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, uploadRequest(t, "urls.pdf", "%PDF"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported file format")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, uploadRequest(t, "empty.csv", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScrapeImagesHandler_UnknownUploadAndColumn(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{}, Options{})
	handler := srv.Routes()

	post := func(form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/scrape-images", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNotFound, post(url.Values{"upload_id": {"nope"}, "column": {"url"}}).Code)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, uploadRequest(t, "p.csv", "url,other\nhttps://a.example,\n"))
	id := uploadIDPattern.FindStringSubmatch(rec.Body.String())[1]

	assert.Equal(t, http.StatusBadRequest, post(url.Values{"upload_id": {id}, "column": {"link"}}).Code)
	assert.Equal(t, http.StatusBadRequest, post(url.Values{"upload_id": {id}, "column": {"other"}}).Code, "column without urls")
}

func TestScrapeImagesHandler_UsesExporter(t *testing.T) {
	stub := &stubExtractor{}
	exporter := &stubExporter{link: "https://bucket.s3.amazonaws.com/scraped_images/run.csv?X-Amz-Signature=abc"}
	srv := newTestServer(t, stub, Options{Exporter: exporter})
	handler := srv.Routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, uploadRequest(t, "p.csv", "url\nhttps://a.example/p1\n"))
	id := uploadIDPattern.FindStringSubmatch(rec.Body.String())[1]

	form := url.Values{"upload_id": {id}, "column": {"url"}}
	req := httptest.NewRequest(http.MethodPost, "/scrape-images", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "X-Amz-Signature=abc")
	assert.Contains(t, string(exporter.body), "https://a.example/p1,Image not found")
	assert.Equal(t, 0, srv.downloads.Len())
}

func TestScrapeAPIHandler(t *testing.T) {
	stub := &stubExtractor{images: map[string]string{
		"https://a.example/p1": "https://media.secure-mobiles.com/product-images/x.jpg",
	}}
	handler := newTestServer(t, stub, Options{}).Routes()

	body := `{"urls": ["https://a.example/p1", "https://a.example/p2"]}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scrape", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp scrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, Summary{Total: 2, Found: 1, NotFound: 1}, resp.Summary)
	assert.Equal(t, []models.Result{
		{ProductPageURL: "https://a.example/p1", ImageURL: "https://media.secure-mobiles.com/product-images/x.jpg"},
		{ProductPageURL: "https://a.example/p2", ImageURL: "Image not found"},
	}, resp.Results)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scrape?format=csv", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "product_page_url,image_url\n"))
}

func TestScrapeAPIHandler_BadRequests(t *testing.T) {
	handler := newTestServer(t, &stubExtractor{}, Options{}).Routes()

	for _, body := range []string{`not json`, `{"urls": []}`, `{"urls": ["https://a.example", " "]}`} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scrape", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestScrapeAPIHandler_LaunchFailure(t *testing.T) {
	stub := &stubExtractor{err: scrapers.ErrBrowserLaunch}
	handler := newTestServer(t, stub, Options{}).Routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scrape", strings.NewReader(`{"urls":["u"]}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed to launch browser")
}

func TestScrapeAPIHandler_OneRunAtATime(t *testing.T) {
	stub := &stubExtractor{started: make(chan struct{}), block: make(chan struct{})}
	handler := newTestServer(t, stub, Options{}).Routes()

	done := make(chan int, 1)
	go func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scrape", strings.NewReader(`{"urls":["a"]}`)))
		done <- rec.Code
	}()

	select {
	case <-stub.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first run never started")
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scrape", strings.NewReader(`{"urls":["b"]}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "another scraping run is in progress")

	close(stub.block)
	select {
	case code := <-done:
		assert.Equal(t, http.StatusOK, code)
	case <-time.After(2 * time.Second):
		t.Fatal("first run never finished")
	}
	assert.Equal(t, []string{"a"}, stub.urls())
}

func TestScrapeAPIHandler_RequiresTokenWhenConfigured(t *testing.T) {
	handler := newTestServer(t, &stubExtractor{}, Options{JWTSecret: "s3cret"}).Routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scrape", strings.NewReader(`{"urls":["a"]}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := utils.GenerateToken("s3cret", "test", time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/scrape", strings.NewReader(`{"urls":["a"]}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIndexAndHealth(t *testing.T) {
	handler := newTestServer(t, &stubExtractor{}, Options{}).Routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `enctype="multipart/form-data"`)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/scrape", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
