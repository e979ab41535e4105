package matching

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/xrash/smetrics"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugSeparatorPattern = regexp.MustCompile(`[^\p{L}\p{N}]+`)
	slugQuoteReplacer    = strings.NewReplacer("'", "", "’", "", "\"", "")
)

// Slugify lowercases raw, folds diacritics, drops punctuation and joins the
// remaining letter/digit runs with hyphens: "PS5 (feat. Alan Walker)" becomes
// "ps5-feat-alan-walker".
func Slugify(raw string) string {
	// transform.Chain keeps state, so it is built per call.
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, raw)
	if err != nil {
		folded = raw
	}
	folded = slugQuoteReplacer.Replace(strings.ToLower(folded))
	return strings.Trim(slugSeparatorPattern.ReplaceAllString(folded, "-"), "-")
}

// MatchPercentage returns the best Indel similarity (0..100) between the
// shorter string and any equally long window of the longer one, including the
// partial windows hanging off either end. Lengths and windows count
// characters, not bytes. Empty input never matches.
func MatchPercentage(a, b string) float64 {
	shorter, longer := []rune(a), []rune(b)
	if len(shorter) == 0 || len(longer) == 0 {
		return 0
	}
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	m, n := len(shorter), len(longer)
	distance := indelDistanceFunc(shorter, longer)

	best := 0.0
	consider := func(lo, hi int) bool {
		total := m + hi - lo
		if score := 100 * float64(total-distance(lo, hi)) / float64(total); score > best {
			best = score
		}
		return best >= 100
	}
	for start := 0; start+m <= n; start++ {
		if consider(start, start+m) {
			return 100
		}
	}
	for size := 1; size < m; size++ {
		if consider(0, size) || consider(n-size, n) {
			return 100
		}
	}
	return best
}

// indelDistanceFunc returns the Indel distance (substitutions cost two edits)
// between shorter and longer[lo:hi]. When both fit a one-byte alphabet the
// characters are packed one per byte for smetrics.
func indelDistanceFunc(shorter, longer []rune) func(lo, hi int) int {
	packedShort, packedLong, ok := packRunes(shorter, longer)
	if ok {
		return func(lo, hi int) int {
			return smetrics.WagnerFischer(packedShort, packedLong[lo:hi], 1, 1, 2)
		}
	}
	return func(lo, hi int) int {
		return indelDistance(shorter, longer[lo:hi])
	}
}

// packRunes maps each distinct rune of a and b to its own byte. It fails when
// the two strings use more than 256 distinct characters.
func packRunes(a, b []rune) (string, string, bool) {
	alphabet := make(map[rune]byte, 64)
	pack := func(rs []rune) ([]byte, bool) {
		out := make([]byte, len(rs))
		for i, r := range rs {
			code, ok := alphabet[r]
			if !ok {
				if len(alphabet) > 255 {
					return nil, false
				}
				code = byte(len(alphabet))
				alphabet[r] = code
			}
			out[i] = code
		}
		return out, true
	}
	pa, ok := pack(a)
	if !ok {
		return "", "", false
	}
	pb, ok := pack(b)
	if !ok {
		return "", "", false
	}
	return string(pa), string(pb), true
}

// indelDistance is len(a)+len(b)-2*LCS(a, b).
func indelDistance(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return len(a) + len(b) - 2*prev[len(b)]
}
