// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
)

//go:embed licenses/*.txt
var licenseFS embed.FS

// licenseSimilarityThreshold is the minimum Jaccard token-overlap a source
// license text must reach against a corpus entry for `license-not-found` to
// be considered resolved.
const licenseSimilarityThreshold = 0.6

type licenseCorpus map[string][]string // SPDX id -> normalized token set

func loadCorpus() licenseCorpus {
	corpus := make(licenseCorpus)
	entries, err := fs.ReadDir(licenseFS, "licenses")
	if err != nil {
		return corpus
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := licenseFS.ReadFile("licenses/" + e.Name())
		if err != nil {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".txt")
		corpus[id] = tokenize(string(data))
	}
	return corpus
}

// MatchLicense reports the closest SPDX id in the embedded corpus for text
// and the similarity score achieved, used by the `license-not-found` check.
func (e *Engine) MatchLicense(text string) (id string, score float64) {
	tokens := tokenize(text)
	var bestID string
	var bestScore float64
	for candidate, corpusTokens := range e.corpus {
		s := jaccard(tokens, corpusTokens)
		if s > bestScore {
			bestScore = s
			bestID = candidate
		}
	}
	return bestID, bestScore
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	seen := make(map[string]bool, len(fields))
	var out []string
	for _, f := range fields {
		if len(f) < 3 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// jaccard computes the Jaccard similarity between two pre-sorted,
// deduplicated token slices.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	i, j, inter := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
