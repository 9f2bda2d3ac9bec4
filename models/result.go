package models

import "strings"

// ImageNotFound is recorded when a rendered page has no matching product image.
const ImageNotFound = "Image not found"

// ErrorPrefix marks an ImageURL that describes a failure instead of a link.
const ErrorPrefix = "Error: "

// Result pairs a product page with the image link resolved from it
type Result struct {
	ProductPageURL string `json:"product_page_url"`
	ImageURL       string `json:"image_url"` // absolute URL, ImageNotFound, or ErrorPrefix + message
}

// Failed reports whether the record carries an error description.
func (r Result) Failed() bool {
	return strings.HasPrefix(r.ImageURL, ErrorPrefix)
}

// Found reports whether an image link was resolved.
func (r Result) Found() bool {
	return r.ImageURL != ImageNotFound && !r.Failed()
}

// ErrorResult builds the record for a page that could not be processed.
func ErrorResult(pageURL string, err error) Result {
	return Result{
		ProductPageURL: pageURL,
		ImageURL:       ErrorPrefix + err.Error(),
	}
}
