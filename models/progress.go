package models

// Progress is emitted once per processed page URL
type Progress struct {
	Index  int    `json:"index"` // zero-based position in the input list
	Total  int    `json:"total"`
	URL    string `json:"url"`
	Result Result `json:"result"`
	Err    error  `json:"-"`
}

// Message renders the operator-facing progress line.
func (p Progress) Message() string {
	if p.Err != nil {
		return "Failed: " + p.URL
	}
	return "Scraped: " + p.URL
}
