package utils

import "strconv"

// Page describes one slice of an ordered result set.
type Page struct {
	Number     int   `json:"page"`
	Size       int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

// GetPage normalizes a raw 1-indexed page request against the total item
// count. Non-numeric or non-positive input falls back to the first page, a
// request past the end falls back to the last page, and an empty result set
// yields a single empty page rather than an error.
func GetPage(raw string, total int64, pageSize int) Page {
	if pageSize < 1 {
		pageSize = 1
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if totalPages < 1 {
		totalPages = 1
	}

	number := 1
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		number = n
	}
	if number > totalPages {
		number = totalPages
	}

	return Page{
		Number:     number,
		Size:       pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasPrev:    number > 1,
		HasNext:    number < totalPages,
	}
}

// Offset is the record offset of the page start.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}
