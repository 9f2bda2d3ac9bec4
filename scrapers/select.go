package scrapers

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FirstMatch scans img elements in document order and returns the first one
// accepted by matcher.
func FirstMatch(doc *goquery.Document, matcher ImageMatcher) (string, bool) {
	var (
		image string
		found bool
	)
	doc.Find("img").EachWithBreak(func(i int, s *goquery.Selection) bool {
		image, found = matcher.MatchImage(s)
		return !found
	})
	return image, found
}

// ResolveImage parses rendered HTML and applies FirstMatch
func ResolveImage(html string, matcher ImageMatcher) (string, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false, fmt.Errorf("parse rendered html: %w", err)
	}
	image, found := FirstMatch(doc, matcher)
	return image, found, nil
}
