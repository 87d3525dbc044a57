package grading

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/homer1989/lehrerdb-v4/core"
)

// boundsEpsilon absorbs float noise when chaining band bounds and when a
// normalized score lands exactly on the closed upper end of the last band.
const boundsEpsilon = 1e-9

// Band maps the half-open score range [Lower, Upper) to a grade label.
// The last band of a key is closed on both ends.
type Band struct {
	Label string  `json:"label"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// GradeKey (Notenschlüssel) is a named, ordered table of score-range to grade
// mappings over the domain [0, Max]. Bands are kept sorted ascending by lower
// bound and partition the domain with no gaps or overlaps; the last band may
// extend past Max as extra-credit headroom.
type GradeKey struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Max       float64   `json:"max"` // 1 for fractional keys, 100 for percent keys
	Bands     []Band    `json:"bands"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Resolve normalizes rawScore/maxScore into the key's domain and returns the
// label of the band containing the normalized value. Bands are closed-lower,
// open-upper; the last band is closed on both ends.
func (k GradeKey) Resolve(rawScore, maxScore float64) (string, error) {
	if maxScore <= 0 || len(k.Bands) == 0 {
		return "", ErrOutOfRange
	}
	norm := rawScore / maxScore * k.Max

	// last band whose lower bound does not exceed the value
	i := sort.Search(len(k.Bands), func(i int) bool { return k.Bands[i].Lower > norm+boundsEpsilon }) - 1
	if i < 0 {
		return "", ErrOutOfRange
	}
	band := k.Bands[i]
	if norm < band.Upper || (i == len(k.Bands)-1 && norm <= band.Upper+boundsEpsilon) {
		return band.Label, nil
	}
	return "", ErrOutOfRange
}

// Definition serializes the bands in the "label;lower;upper" line format used
// by the grade_scales table, highest band first.
func (k GradeKey) Definition() string {
	lines := make([]string, 0, len(k.Bands))
	for i := len(k.Bands) - 1; i >= 0; i-- {
		b := k.Bands[i]
		lines = append(lines, strings.Join([]string{
			b.Label,
			strconv.FormatFloat(b.Lower, 'f', -1, 64),
			strconv.FormatFloat(b.Upper, 'f', -1, 64),
		}, ";"))
	}
	return strings.Join(lines, "\n")
}

// ParseDefinition parses the "label;lower;upper" line format back into bands,
// sorted ascending by lower bound. Blank lines are ignored.
func ParseDefinition(def string) ([]Band, error) {
	var bands []Band
	for _, line := range strings.Split(def, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, ";")
		if len(parts) != 3 {
			return nil, core.NewValidationError(ErrInvalidRange,
				core.FieldError{Field: "definition", Error: fmt.Sprintf("malformed band line %q", line)})
		}
		lower, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, core.NewValidationError(ErrInvalidRange,
				core.FieldError{Field: "definition", Error: fmt.Sprintf("invalid lower bound in %q", line)})
		}
		upper, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return nil, core.NewValidationError(ErrInvalidRange,
				core.FieldError{Field: "definition", Error: fmt.Sprintf("invalid upper bound in %q", line)})
		}
		bands = append(bands, Band{Label: strings.TrimSpace(parts[0]), Lower: lower, Upper: upper})
	}
	sort.Slice(bands, func(i, j int) bool { return bands[i].Lower < bands[j].Lower })
	return bands, nil
}

// NewGradeKey contains information needed to create a new GradeKey.
type NewGradeKey struct {
	Name  string  `json:"name" validate:"required"`
	Max   float64 `json:"max" validate:"gt=0"`
	Bands []Band  `json:"bands" validate:"required,min=1"`
}

// Validate checks the static definition: bands must partition [0, Max] with no
// gaps and no overlaps. The last band's upper bound may exceed Max (extra credit).
// On update, pass the key being replaced so its own name does not trip the
// uniqueness check.
func (nk *NewGradeKey) Validate(svc *Service, exclKeys ...GradeKey) error {
	nk.Name = core.CleanString(nk.Name)

	if err := core.Validate.Struct(nk); err != nil {
		return err
	}

	bands := make([]Band, len(nk.Bands))
	copy(bands, nk.Bands)
	sort.Slice(bands, func(i, j int) bool { return bands[i].Lower < bands[j].Lower })

	for i, b := range bands {
		if b.Upper <= b.Lower {
			return bandError(ErrInvalidRange, i, "upper bound must exceed lower bound")
		}
		if i == 0 {
			if !closeEnough(b.Lower, 0) {
				return bandError(ErrInvalidRange, i, "first band must start at 0")
			}
			continue
		}
		prev := bands[i-1]
		if b.Lower < prev.Upper-boundsEpsilon {
			return bandError(ErrInvalidRange, i, fmt.Sprintf("band overlaps previous (starts at %v, previous ends at %v)", b.Lower, prev.Upper))
		}
		if b.Lower > prev.Upper+boundsEpsilon {
			return bandError(ErrInvalidRange, i, fmt.Sprintf("gap before band (starts at %v, previous ends at %v)", b.Lower, prev.Upper))
		}
	}
	if last := bands[len(bands)-1]; last.Upper < nk.Max-boundsEpsilon {
		return bandError(ErrInvalidRange, len(bands)-1, fmt.Sprintf("last band ends at %v, key maximum is %v", last.Upper, nk.Max))
	}

	nk.Bands = bands
	return svc.checkNameUniqueness(nk.Name, exclKeys...)
}

func bandError(err error, idx int, msg string) error {
	return core.NewValidationError(err, core.FieldError{
		Field: fmt.Sprintf("bands[%d]", idx),
		Error: msg,
	})
}

func closeEnough(a, b float64) bool {
	d := a - b
	return d < boundsEpsilon && d > -boundsEpsilon
}

// DefaultGradeKey is the seed key installed when no grade key exists yet:
// 0.5 grade steps with boundaries at 86/72/58/44/20 percent, right-exclusive.
func DefaultGradeKey() NewGradeKey {
	return NewGradeKey{
		Name: "Default (86/72/58/44/20, 0.5er)",
		Max:  100,
		Bands: []Band{
			{Label: "6.0", Lower: 0, Upper: 19},
			{Label: "5.5", Lower: 19, Upper: 31.5},
			{Label: "5.0", Lower: 31.5, Upper: 44},
			{Label: "4.5", Lower: 44, Upper: 51},
			{Label: "4.0", Lower: 51, Upper: 58},
			{Label: "3.5", Lower: 58, Upper: 65},
			{Label: "3.0", Lower: 65, Upper: 72},
			{Label: "2.5", Lower: 72, Upper: 79},
			{Label: "2.0", Lower: 79, Upper: 86},
			{Label: "1.5", Lower: 86, Upper: 93},
			{Label: "1.0", Lower: 93, Upper: 100.1},
		},
	}
}
