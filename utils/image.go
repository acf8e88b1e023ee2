package utils

import (
	"net/http"
	"strings"
)

// DetectImage sniffs the payload head and reports whether it is a well-formed
// image. The returned content type is whatever http.DetectContentType saw.
func DetectImage(head []byte) (string, bool) {
	ct := http.DetectContentType(head)
	return ct, strings.HasPrefix(ct, "image/")
}
