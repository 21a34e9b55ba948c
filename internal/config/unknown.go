package config

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance bounds how far a typo may be from a key that is
// suggested in its place.
const maxLevenshteinDistance = 3

// knownGlobalKeys are the valid flat top-level keys in the config file.
var knownGlobalKeys = []string{
	"provider",
	"parallel_uploads", "parallel_downloads", "bandwidth_limit", "prefer_archive",
	"log_level",
	"http_timeout", "requests_per_second", "user_agent",
	ProviderYandex, ProviderDropbox, ProviderGDrive, ProviderS3, ProviderOneDrive,
}

// knownTableKeys are the valid keys inside each provider table.
var knownTableKeys = map[string][]string{
	ProviderYandex:  {"base_url", "token_env"},
	ProviderDropbox: {"api_url", "content_url", "token_env"},
	ProviderGDrive: {
		"base_url", "upload_url", "token_url", "device_auth_url", "token_env", "client_id", "client_secret_env",
	},
	ProviderS3:       {"endpoint", "region", "bucket", "access_key_env", "secret_key_env"},
	ProviderOneDrive: {"base_url", "tenant", "client_id", "token_url", "device_auth_url", "token_env"},
}

func init() {
	sort.Strings(knownGlobalKeys)

	for _, keys := range knownTableKeys {
		sort.Strings(keys)
	}
}

// checkUnknownKeys turns every key the decoder did not consume into an
// error, with a suggestion when a known key is a few edits away.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error
	for _, key := range md.Undecoded() {
		errs = append(errs, unknownKeyError(key))
	}

	return errors.Join(errs...)
}

func unknownKeyError(key toml.Key) error {
	scope, known, field := "config key", knownGlobalKeys, key[0]

	if tableKeys, ok := knownTableKeys[key[0]]; ok && len(key) > 1 {
		scope, known, field = fmt.Sprintf("key in [%s]", key[0]), tableKeys, key[1]
	} else if slices.Contains(knownGlobalKeys, field) {
		// A known scalar used as a table, e.g. [log_level].
		return fmt.Errorf("config key %q has the wrong type", key.String())
	}

	if s := suggest(field, known); s != "" {
		return fmt.Errorf("unknown %s %q, did you mean %q?", scope, field, s)
	}

	return fmt.Errorf("unknown %s %q", scope, field)
}

// suggest returns the known key nearest to name, or "" when none is within
// maxLevenshteinDistance edits.
func suggest(name string, known []string) string {
	name = strings.ToLower(name)

	best, bestDist := "", maxLevenshteinDistance+1
	for _, k := range known {
		if d := editDistance(name, k); d < bestDist {
			best, bestDist = k, d
		}
	}

	return best
}

// editDistance is the Levenshtein distance between a and b, computed over
// bytes with one rolling row.
func editDistance(a, b string) int {
	row := make([]int, len(b)+1)
	for j := range row {
		row[j] = j
	}

	for i := 1; i <= len(a); i++ {
		diag := row[0]
		row[0] = i

		for j := 1; j <= len(b); j++ {
			sub := diag
			if a[i-1] != b[j-1] {
				sub++
			}

			diag = row[j]
			row[j] = min(row[j]+1, row[j-1]+1, sub)
		}
	}

	return row[len(b)]
}
