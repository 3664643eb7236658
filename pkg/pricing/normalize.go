package pricing

import (
	"regexp"
	"strings"

	"github.com/0xmhha/usage-monitor/pkg/usage"
)

var fourthGenMarkers = []string{
	"claude-opus-4-",
	"claude-sonnet-4-",
	"claude-haiku-4-",
	"opus-4-",
	"sonnet-4-",
	"haiku-4-",
}

// dateSuffix matches a trailing snapshot date such as "-20241022".
var dateSuffix = regexp.MustCompile(`-\d{8}$`)

// NormalizeModel maps a raw model name to its canonical family key.
//
// Rules:
//   - empty names become "unknown"
//   - 4th-generation identifiers pass through lower-cased
//   - opus, sonnet and haiku map to their 3.x family, selecting the 3.5
//     sub-family when "3.5" or "3-5" is present
//   - anything else is returned unchanged
//
// NormalizeModel is idempotent.
func NormalizeModel(model string) string {
	if model == "" {
		return usage.UnknownModel
	}

	lower := strings.ToLower(model)

	for _, marker := range fourthGenMarkers {
		if strings.Contains(lower, marker) {
			return lower
		}
	}

	is35 := strings.Contains(lower, "3.5") || strings.Contains(lower, "3-5")

	switch {
	case strings.Contains(lower, "opus"):
		if strings.Contains(lower, "4-") {
			return lower
		}
		return "claude-3-opus"
	case strings.Contains(lower, "sonnet"):
		if strings.Contains(lower, "4-") {
			return lower
		}
		if is35 {
			return "claude-3-5-sonnet"
		}
		return "claude-3-sonnet"
	case strings.Contains(lower, "haiku"):
		if is35 {
			return "claude-3-5-haiku"
		}
		return "claude-3-haiku"
	}

	return model
}

// priceKey returns the table key for a model: the normalized name with any
// snapshot date suffix removed.
func priceKey(model string) string {
	return dateSuffix.ReplaceAllString(NormalizeModel(model), "")
}
