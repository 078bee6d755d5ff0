package scheduler

import (
	"encoding"
	"encoding/json"
	"fmt"
	"strings"
)

// Quality grades a recall on the SM-2 scale.
//
//	0 complete blackout
//	1 incorrect, but familiar
//	2 incorrect, but the answer was easy to recall once seen
//	3 correct with serious difficulty
//	4 correct after hesitation
//	5 perfect recall
type Quality int

const (
	MinQuality Quality = 0
	MaxQuality Quality = 5

	// PassingQuality is the lowest quality counted as a successful recall.
	PassingQuality Quality = 3

	// NeutralQuality is used for rating labels nobody recognizes.
	NeutralQuality Quality = 3
)

// IsValid reports whether q is within 0..5.
func (q Quality) IsValid() bool {
	return q >= MinQuality && q <= MaxQuality
}

// Passed reports whether q counts as a successful recall.
func (q Quality) Passed() bool {
	return q >= PassingQuality
}

// Rating is the coarse judgment a learner gives after seeing the answer.
type Rating int

const (
	Hard Rating = iota + 1
	Good
	Easy
)

// The quality of each rating is a fixed calibration. Changing it distorts
// the schedules already derived from stored histories.
var (
	ratingNames   = [...]string{Hard: "hard", Good: "good", Easy: "easy"}
	ratingQuality = [...]Quality{Hard: 2, Good: 4, Easy: 5}
	ratingByName  = map[string]Rating{
		"hard": Hard,
		"good": Good,
		"easy": Easy,
	}
)

var (
	_ fmt.Stringer             = Rating(0)
	_ json.Marshaler           = Rating(0)
	_ json.Unmarshaler         = (*Rating)(nil)
	_ encoding.TextMarshaler   = Rating(0)
	_ encoding.TextUnmarshaler = (*Rating)(nil)
)

// Ratings returns every valid rating in ascending order.
func Ratings() []Rating {
	return []Rating{Hard, Good, Easy}
}

// String returns the lower-case label of the rating, or "Rating(n)" for invalid values.
func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// IsValid reports whether r is one of Hard, Good or Easy.
func (r Rating) IsValid() bool {
	return r >= Hard && r <= Easy
}

// Quality returns the SM-2 quality the rating stands for.
func (r Rating) Quality() Quality {
	if !r.IsValid() {
		return NeutralQuality
	}
	return ratingQuality[r]
}

// ParseRating parses a label case-insensitively, ignoring surrounding whitespace,
// and rejects anything unknown.
func ParseRating(label string) (Rating, error) {
	r, ok := ratingByName[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRating, label)
	}
	return r, nil
}

// QualityForLabel maps a rating label to a quality and never fails.
// Labels are matched like ParseRating, so " Easy " maps to 5.
// Unknown labels get NeutralQuality so a typo upstream still schedules the card.
func QualityForLabel(label string) Quality {
	r, err := ParseRating(label)
	if err != nil {
		return NeutralQuality
	}
	return r.Quality()
}

// LabelForQuality returns the rating label matching q, or "q<N>" when no rating maps to it.
func LabelForQuality(q Quality) string {
	for _, r := range Ratings() {
		if r.Quality() == q {
			return r.String()
		}
	}
	return fmt.Sprintf("q%d", int(q))
}

// MarshalText implements encoding.TextMarshaler.
func (r Rating) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
	return []byte(ratingNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rating) UnmarshalText(text []byte) error {
	v, err := ParseRating(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// MarshalJSON implements json.Marshaler. Rating serializes as a JSON string.
func (r Rating) MarshalJSON() ([]byte, error) {
	text, err := r.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Rating) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRating, data)
	}
	return r.UnmarshalText([]byte(s))
}
