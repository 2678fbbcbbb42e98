// Package identity checks whether two business names plausibly refer to the
// same company.
package identity

import (
	"strings"
	"unicode"

	"github.com/okian/rfqmatch/internal/domain/similarity"
)

// DefaultThreshold is the minimum similarity for a name to be accepted.
const DefaultThreshold = 0.85

// legalSuffixes are dropped from the end of a normalized name.
var legalSuffixes = map[string]struct{}{
	"pvt": {}, "private": {}, "ltd": {}, "limited": {}, "llp": {}, "llc": {},
	"inc": {}, "incorporated": {}, "corp": {}, "corporation": {}, "co": {},
	"company": {}, "plc": {}, "gmbh": {},
}

// Result is the outcome of a name comparison.
type Result struct {
	Claimed    string  `json:"claimed"`
	Registered string  `json:"registered"`
	Similarity float64 `json:"similarity"`
	Threshold  float64 `json:"threshold"`
	Match      bool    `json:"match"`
}

// Verifier compares a claimed business name against a registered one.
type Verifier struct {
	threshold float64
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithThreshold overrides DefaultThreshold. Values outside (0,1] are ignored.
func WithThreshold(th float64) Option {
	return func(v *Verifier) {
		if th > 0 && th <= 1 {
			v.threshold = th
		}
	}
}

// NewVerifier creates a Verifier.
func NewVerifier(opts ...Option) *Verifier {
	v := &Verifier{threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Threshold returns the acceptance threshold.
func (v *Verifier) Threshold() float64 {
	return v.threshold
}

// Verify normalizes both names and compares them with Jaro-Winkler.
func (v *Verifier) Verify(claimed, registered string) Result {
	a, b := Normalize(claimed), Normalize(registered)
	score := 0.0
	if a != "" && b != "" {
		score = similarity.JaroWinkler(a, b)
	}
	return Result{
		Claimed:    claimed,
		Registered: registered,
		Similarity: score,
		Threshold:  v.threshold,
		Match:      score >= v.threshold,
	}
}

// Normalize lowercases name, replaces punctuation with spaces and strips
// trailing legal suffixes.
func Normalize(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		case r == '&':
			return r
		default:
			return ' '
		}
	}, name)

	words := strings.Fields(cleaned)
	for len(words) > 1 {
		if _, ok := legalSuffixes[words[len(words)-1]]; !ok {
			break
		}
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}
