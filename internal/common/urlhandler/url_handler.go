package urlhandler

import (
	"net/url"
	"strings"

	"github.com/aleister1102/ratekeeper/internal/common/errorwrapper"
)

// NormalizeURL normalizes a URL by adding scheme if missing and lowercasing the domain
func NormalizeURL(rawURL string) (string, error) {
	trimmedURL := strings.TrimSpace(rawURL)
	if trimmedURL == "" {
		return "", errorwrapper.NewValidationError("url", rawURL, "URL is empty")
	}

	if !strings.HasPrefix(trimmedURL, "http://") && !strings.HasPrefix(trimmedURL, "https://") {
		trimmedURL = "https://" + trimmedURL
	}

	parsedURL, err := url.Parse(trimmedURL)
	if err != nil {
		return "", errorwrapper.WrapError(err, "could not parse URL '"+trimmedURL+"'")
	}
	if parsedURL.Host == "" {
		return "", errorwrapper.NewValidationError("url", rawURL, "URL has no host")
	}

	parsedURL.Host = strings.ToLower(parsedURL.Host)

	return parsedURL.String(), nil
}

// ValidateURLFormat validates if a URL string has proper format
func ValidateURLFormat(rawURL string) error {
	trimmedURL := strings.TrimSpace(rawURL)
	if trimmedURL == "" {
		return errorwrapper.NewValidationError("url", rawURL, "URL is empty")
	}

	parsedURL, err := url.Parse(trimmedURL)
	if err != nil {
		return errorwrapper.WrapError(err, "invalid URL format '"+trimmedURL+"'")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errorwrapper.NewValidationError("url", rawURL, "scheme must be http or https")
	}

	return nil
}

// ExtractHostname extracts hostname without port from a URL string
func ExtractHostname(urlString string) (string, error) {
	if urlString == "" {
		return "", errorwrapper.NewError("URL string is empty")
	}

	parsedURL, err := url.Parse(urlString)
	if err != nil {
		return "", errorwrapper.WrapError(err, "could not parse URL '"+urlString+"'")
	}

	hostname := parsedURL.Hostname()
	if hostname == "" {
		return "", errorwrapper.NewError("URL has no hostname component: %s", urlString)
	}

	return hostname, nil
}
