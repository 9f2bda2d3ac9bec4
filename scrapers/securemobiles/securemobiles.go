package securemobiles

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Marker identifies the retailer's product image host and path
const Marker = "media.secure-mobiles.com/product-images"

// Matcher selects product images served from the Secure Mobiles asset host
type Matcher struct{}

func NewMatcher() *Matcher {
	return &Matcher{}
}

// MatchImage accepts an img whose src contains Marker
func (m *Matcher) MatchImage(img *goquery.Selection) (string, bool) {
	src, ok := img.Attr("src")
	if !ok || !strings.Contains(src, Marker) {
		return "", false
	}
	return NormalizeSource(src), true
}

// ReadyScript is true once the document holds a matching img
func (m *Matcher) ReadyScript() string {
	return fmt.Sprintf(
		`Array.from(document.getElementsByTagName("img")).some(function (img) { var src = img.getAttribute("src"); return !!src && src.indexOf(%q) !== -1; })`,
		Marker,
	)
}

// NormalizeSource turns a protocol-relative src into an https URL
func NormalizeSource(src string) string {
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	return src
}
