// Package validation checks operator-supplied settings that the config
// loader cannot express as simple presence checks.
package validation

import (
	"fmt"
	"net/url"
)

// URLError reports why a configured URL was rejected.
type URLError struct {
	Setting string
	Reason  string
	URL     string
}

func (e URLError) Error() string {
	return fmt.Sprintf("%s: %s (url: %s)", e.Setting, e.Reason, e.URL)
}

// BaseURL accepts an absolute http(s) origin with no path beyond "/", no
// query and no fragment. When requireHTTPS is set the scheme must be https.
func BaseURL(raw, setting string, requireHTTPS bool) error {
	reject := func(reason string) error {
		return URLError{Setting: setting, Reason: reason, URL: raw}
	}
	if raw == "" {
		return reject("must not be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return reject("invalid URL format")
	}
	switch parsed.Scheme {
	case "https":
	case "http":
		if requireHTTPS {
			return reject("must use https")
		}
	case "":
		return reject("must include a scheme")
	default:
		return reject("scheme must be http or https")
	}
	if parsed.Host == "" {
		return reject("must include a host")
	}
	if parsed.User != nil {
		return reject("must not contain credentials")
	}
	if parsed.Path != "" && parsed.Path != "/" {
		return reject("must not contain a path")
	}
	if parsed.RawQuery != "" || parsed.ForceQuery {
		return reject("must not contain query parameters")
	}
	if parsed.Fragment != "" {
		return reject("must not contain a fragment")
	}
	return nil
}
