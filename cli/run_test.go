package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raushankrgupta/product-image-scraper/models"
	"github.com/raushankrgupta/product-image-scraper/sheet"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadURLs(t *testing.T) {
	path := writeFile(t, "products.csv", "sku,url\n1,https://a.example/p1\n2,\n3,https://a.example/p1\n")

	urls, err := loadURLs(path, "url")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/p1", "https://a.example/p1"}, urls)

	_, err = loadURLs(path, "link")
	require.ErrorIs(t, err, sheet.ErrUnknownColumn)
	assert.Contains(t, err.Error(), "[sku url]")

	empty := writeFile(t, "empty.csv", "sku,url\n1,\n")
	_, err = loadURLs(empty, "url")
	assert.Error(t, err)

	_, err = loadURLs(filepath.Join(t.TempDir(), "missing.csv"), "url")
	assert.Error(t, err)
}

func TestWriteResultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	err := writeResultFile(path, []models.Result{
		{ProductPageURL: "https://a.example/p1", ImageURL: models.ImageNotFound},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "product_page_url,image_url\nhttps://a.example/p1,Image not found\n", string(data))
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	renderTable(&buf, []models.Result{
		{ProductPageURL: "https://a.example/p1", ImageURL: "https://media.secure-mobiles.com/product-images/x.jpg"},
		{ProductPageURL: "https://a.example/p2", ImageURL: models.ImageNotFound},
		{ProductPageURL: "https://a.example/p3", ImageURL: "Error: boom"},
	})

	out := buf.String()
	assert.Contains(t, out, "https://a.example/p2")
	assert.Contains(t, out, "Image not found")
	assert.Contains(t, out, "1 / 1 / 1")
}
