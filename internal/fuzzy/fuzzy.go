// Package fuzzy scores how well a pattern matches a string as an ordered,
// case-insensitive subsequence, rewarding matches at word and camel-case
// boundaries.
package fuzzy

import (
	"strings"
	"unicode"
)

// Scoring weights. Penalties are negative.
const (
	perfectBonus      = 100
	adjacencyBonus    = 5
	separatorBonus    = 10
	camelBonus        = 10
	leadingPenalty    = -3
	maxLeadingPenalty = -9
	unmatchedPenalty  = -1
)

// Match reports whether every character of pattern appears in text in order,
// ignoring case, along with a score. Scores are only comparable between calls
// that use the same pattern. An empty pattern or text never matches.
func Match(pattern, text string) (bool, int) {
	if pattern == "" || text == "" {
		return false, 0
	}
	pat := []rune(pattern)
	str := []rune(text)

	score := 0
	patIdx := 0
	prevMatched := false
	prevLower := false
	prevSeparator := true

	// The best candidate for the current pattern character. A later letter
	// may replace it if it scores at least as well.
	hasBest := false
	var bestLower rune
	bestScore := 0

	for strIdx, ch := range str {
		lower := unicode.ToLower(ch)
		upper := unicode.ToUpper(ch)

		havePat := patIdx < len(pat)
		var patLower rune
		if havePat {
			patLower = unicode.ToLower(pat[patIdx])
		}

		nextMatch := havePat && patLower == lower
		rematch := hasBest && bestLower == lower
		advanced := nextMatch && hasBest
		patternRepeat := hasBest && havePat && bestLower == patLower
		if advanced || patternRepeat {
			score += bestScore
			hasBest = false
			bestScore = 0
		}

		if nextMatch || rematch {
			newScore := 0
			if patIdx == 0 {
				score += max(strIdx*leadingPenalty, maxLeadingPenalty)
			}
			if prevMatched {
				newScore += adjacencyBonus
			}
			if prevSeparator {
				newScore += separatorBonus
			}
			if prevLower && ch == upper && lower != upper {
				newScore += camelBonus
			}
			if nextMatch {
				patIdx++
			}
			if newScore >= bestScore {
				if hasBest {
					score += unmatchedPenalty
				}
				hasBest = true
				bestLower = lower
				bestScore = newScore
			}
			prevMatched = true
		} else {
			score += unmatchedPenalty
			prevMatched = false
		}

		prevLower = ch == lower && lower != upper
		prevSeparator = ch == '_' || ch == ' '
	}

	if hasBest {
		score += bestScore
	}
	if strings.ToLower(pattern) == strings.ToLower(text) {
		score += perfectBonus
	}
	return patIdx == len(pat), score
}
