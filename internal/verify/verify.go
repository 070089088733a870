// Package verify checks that an uploaded photo plausibly shows the claimed activity.
package verify

import (
	"context"
	"strings"
	"unicode"
)

// Verdict is the outcome of an image check.
type Verdict string

// Verdicts.
const (
	Accepted Verdict = "accepted"
	Rejected Verdict = "rejected"
	// Unverifiable means the verifier could not decide; callers let the submission through.
	Unverifiable Verdict = "unverified"
)

// Verifier inspects an image for an activity type.
type Verifier interface {
	Verify(ctx context.Context, activityType string, image []byte, mime string) (Verdict, error)
}

// Preset is a known activity with its suggested reward and image keywords.
type Preset struct {
	Points   int64
	CO2Saved float64
	Keywords []string
}

// Presets lists the activity types the clients offer.
var Presets = map[string]Preset{
	"Recycled Trash":           {Points: 10, CO2Saved: 0.5, Keywords: []string{"trash", "garbage", "recycle"}},
	"Planted Tree":             {Points: 50, CO2Saved: 20, Keywords: []string{"tree", "plant", "nature"}},
	"Boarded Public Transport": {Points: 15, CO2Saved: 1, Keywords: []string{"bus", "train", "metro", "tram"}},
	"Saved Electricity":        {Points: 5, CO2Saved: 0.2, Keywords: []string{"light", "electricity", "lamp"}},
	"Used Bicycle":             {Points: 20, CO2Saved: 2, Keywords: []string{"bicycle", "bike", "cycling"}},
}

// Match reports whether a word of any tag equals a keyword, ignoring case and
// a plural "s" on either side.
func Match(tags, keywords []string) bool {
	for _, t := range tags {
		for _, w := range words(t) {
			for _, k := range keywords {
				if sameWord(w, strings.ToLower(k)) {
					return true
				}
			}
		}
	}
	return false
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func sameWord(a, b string) bool {
	return a == b || a == b+"s" || b == a+"s"
}
