package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/raushankrgupta/product-image-scraper/models"
)

// DownloadName is the file name offered for result downloads
const DownloadName = "scraped_images.csv"

// ResultHeader is the header row of the result CSV
var ResultHeader = []string{"product_page_url", "image_url"}

// WriteResults writes results as CSV with ResultHeader
func WriteResults(w io.Writer, results []models.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ResultHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range results {
		if err := cw.Write([]string{r.ProductPageURL, r.ImageURL}); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// EncodeResults renders results into an in-memory CSV
func EncodeResults(results []models.Result) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteResults(&buf, results); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
