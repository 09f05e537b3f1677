// Package sanitize strips markup from user-supplied text.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// Text removes every HTML element, including script and style bodies, and
// decodes entities so the catalog stores plain text. JSON encoding handles
// escaping on the way out.
func Text(input string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(input)))
}
