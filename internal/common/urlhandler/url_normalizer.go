package urlhandler

import (
	"net/url"
	"strings"

	"github.com/aleister1102/ratekeeper/internal/common/errorwrapper"
)

var commonTrackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"fbclid", "gclid", "msclkid", "_ga", "_gl", "mc_cid", "mc_eid",
}

// URLNormalizationConfig controls which parts of a URL are dropped when
// deduplicating targets.
type URLNormalizationConfig struct {
	StripFragments      bool
	StripTrackingParams bool
	CustomStripParams   []string
}

// DefaultURLNormalizationConfig returns default configuration
func DefaultURLNormalizationConfig() URLNormalizationConfig {
	return URLNormalizationConfig{
		StripFragments:      true,
		StripTrackingParams: true,
	}
}

// URLNormalizer rewrites URLs into a canonical form so that equivalent
// targets are only probed once.
type URLNormalizer struct {
	config      URLNormalizationConfig
	stripParams map[string]struct{}
}

// NewURLNormalizer creates a new URL normalizer
func NewURLNormalizer(config URLNormalizationConfig) *URLNormalizer {
	strip := make(map[string]struct{})
	if config.StripTrackingParams {
		for _, p := range commonTrackingParams {
			strip[p] = struct{}{}
		}
	}
	for _, p := range config.CustomStripParams {
		strip[strings.ToLower(p)] = struct{}{}
	}

	return &URLNormalizer{config: config, stripParams: strip}
}

// NormalizeURL normalizes a URL according to configuration
func (un *URLNormalizer) NormalizeURL(inputURL string) (string, error) {
	parsedURL, err := url.Parse(inputURL)
	if err != nil {
		return "", errorwrapper.WrapError(err, "failed to parse URL")
	}

	if un.config.StripFragments {
		parsedURL.Fragment = ""
		parsedURL.RawFragment = ""
	}

	if len(un.stripParams) > 0 && parsedURL.RawQuery != "" {
		values := parsedURL.Query()
		modified := false
		for param := range values {
			if _, ok := un.stripParams[strings.ToLower(param)]; ok {
				values.Del(param)
				modified = true
			}
		}
		if modified {
			parsedURL.RawQuery = values.Encode()
		}
	}

	return parsedURL.String(), nil
}
