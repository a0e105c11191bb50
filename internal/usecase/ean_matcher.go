package usecase

import (
	"regexp"

	"github.com/jumboapi/backend/internal/domain"
)

var nonDigitRegex = regexp.MustCompile(`\D`)

// Fixed score bands for near-exact EAN agreement. Barcodes from the same
// brand/product line share a long manufacturer+product prefix and differ only
// in the pack-size suffix, so 11-12 matching leading digits almost always
// mean the same item in a different pack.
const (
	eanScoreExact      = 100
	eanScoreZeroPadded = 95
	eanScore12Plus     = 95
	eanScore11         = 92
)

// normalizeBarcode strips everything but digits from a barcode string.
func normalizeBarcode(barcode string) string {
	return nonDigitRegex.ReplaceAllString(barcode, "")
}

// EANSimilarity scores how well a candidate product's barcode matches the
// scanned barcode, 0-100. The score is a step function over the length of
// the longest common leading digit run; digits beyond the first mismatch do
// not count even if they coincidentally agree again. The 10/8/6/4-digit
// bands come from the settings snapshot; below 4 matching digits the
// candidate is considered unrelated and scores 0.
func EANSimilarity(scanned, candidate string, settings domain.MatchSettings) int {
	if scanned == "" || candidate == "" {
		return 0
	}
	if scanned == candidate {
		return eanScoreExact
	}

	s := normalizeBarcode(scanned)
	c := normalizeBarcode(candidate)
	if s == c {
		return eanScoreExact
	}

	// EAN-13 vs UPC-A of the same product differ only by a leading zero
	if s == "0"+c || c == "0"+s {
		return eanScoreZeroPadded
	}

	matching := matchingPrefixDigits(s, c)

	switch {
	case matching >= 12:
		return eanScore12Plus
	case matching == 11:
		return eanScore11
	case matching == 10:
		return settings.EANScore10Plus
	case matching >= 8:
		return settings.EANScore8Plus
	case matching >= 6:
		return settings.EANScore6Plus
	case matching >= 4:
		return settings.EANScore4Plus
	default:
		return 0
	}
}

// matchingPrefixDigits counts the longest run of leading digits that are
// equal in both strings.
func matchingPrefixDigits(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	count := 0
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			break
		}
		count++
	}
	return count
}
