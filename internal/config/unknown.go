package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance bounds how far a typo may be from a suggestion.
const maxLevenshteinDistance = 3

// knownKeys lists every dotted key the Config accepts.
var knownKeys = map[string]bool{
	"api_url":                   true,
	"client_id":                 true,
	"tenant_id":                 true,
	"client_secret":             true,
	"scope":                     true,
	"authority_url":             true,
	"no_login_cache":            true,
	"logging":                   true,
	"logging.log_level":         true,
	"transfers":                 true,
	"transfers.bandwidth_limit": true,
	"network":                   true,
	"network.timeout":           true,
}

// knownKeysList is sorted so equal-distance suggestions are deterministic.
var knownKeysList = func() []string {
	keys := make([]string, 0, len(knownKeys))
	for k := range knownKeys {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}()

// checkUnknownKeys reports every undecoded key with a suggestion when one
// is close enough.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	for _, key := range md.Undecoded() {
		keyStr := key.String()

		if suggestion := closestMatch(keyStr, knownKeysList); suggestion != "" {
			errs = append(errs, fmt.Errorf("config: unknown key %q, did you mean %q?", keyStr, suggestion))

			continue
		}

		errs = append(errs, fmt.Errorf("config: unknown key %q", keyStr))
	}

	return errors.Join(errs...)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns "" if nothing is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		if d := levenshtein(unknown, k); d < bestDist {
			bestDist = d
			best = k
		}
	}

	return best
}

func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
