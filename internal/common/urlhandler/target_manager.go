package urlhandler

import (
	"bufio"
	"os"
	"strings"

	"github.com/aleister1102/ratekeeper/internal/common/errorwrapper"
	"github.com/rs/zerolog"
)

// TargetManager loads probe targets from a file and from the command line.
type TargetManager struct {
	logger     zerolog.Logger
	normalizer *URLNormalizer
}

// NewTargetManager creates a new TargetManager instance
func NewTargetManager(logger zerolog.Logger) *TargetManager {
	return &TargetManager{
		logger:     logger.With().Str("component", "TargetManager").Logger(),
		normalizer: NewURLNormalizer(DefaultURLNormalizationConfig()),
	}
}

// LoadTargets merges targets from filePath (one URL per line) and urls.
// Blank lines and lines starting with '#' are ignored, invalid URLs are
// skipped with a warning and duplicates are dropped keeping first-seen order.
func (tm *TargetManager) LoadTargets(filePath string, urls []string) ([]Target, error) {
	var raw []string
	if filePath != "" {
		lines, err := readLines(filePath)
		if err != nil {
			return nil, errorwrapper.WrapError(err, "failed to load URLs from file '"+filePath+"'")
		}
		raw = append(raw, lines...)
	}
	raw = append(raw, urls...)

	seen := make(map[string]struct{}, len(raw))
	targets := make([]Target, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		normalized, err := NormalizeURL(line)
		if err == nil {
			normalized, err = tm.normalizer.NormalizeURL(normalized)
		}
		if err != nil {
			tm.logger.Warn().Str("url", line).Err(err).Msg("Failed to normalize URL, skipping")
			continue
		}

		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		targets = append(targets, Target{Original: line, URL: normalized})
	}

	if len(targets) == 0 {
		return nil, errorwrapper.NewError("%w: no valid URLs in input", errorwrapper.ErrNotFound)
	}

	tm.logger.Info().Int("count", len(targets)).Str("file", filePath).Int("cli_urls", len(urls)).Msg("Loaded targets")
	return targets, nil
}

// GetTargetStrings extracts URL strings from Target objects
func (tm *TargetManager) GetTargetStrings(targets []Target) []string {
	urls := make([]string, len(targets))
	for i, t := range targets {
		urls[i] = t.URL
	}
	return urls
}

func readLines(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
