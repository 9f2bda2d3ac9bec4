package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/raushankrgupta/product-image-scraper/config"
	"github.com/raushankrgupta/product-image-scraper/models"
	"github.com/raushankrgupta/product-image-scraper/scrapers"
	"github.com/raushankrgupta/product-image-scraper/scrapers/base"
	"github.com/raushankrgupta/product-image-scraper/scrapers/securemobiles"
	"github.com/raushankrgupta/product-image-scraper/utils"
)

// Manual check against live pages: test_scraper <url> [url...]
func main() {
	config.LoadConfig()

	urls := os.Args[1:]
	if len(urls) == 0 {
		urls = []string{
			"https://www.secure-mobiles.com/apple-iphone-15-128gb-black",
		}
	}

	logger, err := utils.NewLogger("debug", "console")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	extractor := scrapers.NewExtractor(
		base.NewChromeLauncher(config.ChromePath, logger),
		securemobiles.NewMatcher(),
		scrapers.WithLogger(logger),
		scrapers.WithProgress(func(p models.Progress) {
			fmt.Printf("[%d/%d] %s\n", p.Index+1, p.Total, p.Message())
		}),
	)

	results, err := extractor.Extract(context.Background(), urls)
	if err != nil {
		logger.Fatal("Extraction failed", zap.Error(err))
	}

	b, _ := json.MarshalIndent(results, "", "  ")
	fmt.Printf("Results: %s\n", string(b))
}
