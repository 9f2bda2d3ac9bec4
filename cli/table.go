package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/raushankrgupta/product-image-scraper/models"
)

func renderTable(w io.Writer, results []models.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "product_page_url", "image_url"})

	var found, failed int
	for i, r := range results {
		image := r.ImageURL
		switch {
		case r.Failed():
			failed++
			image = text.FgRed.Sprint(image)
		case r.Found():
			found++
		default:
			image = text.FgYellow.Sprint(image)
		}
		t.AppendRow(table.Row{i + 1, r.ProductPageURL, image})
	}

	t.AppendFooter(table.Row{"", "found / not found / failed", formatCounts(found, len(results)-found-failed, failed)})
	t.Render()
}

func formatCounts(found, notFound, failed int) string {
	return fmt.Sprintf("%d / %d / %d", found, notFound, failed)
}
