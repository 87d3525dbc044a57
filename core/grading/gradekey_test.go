package grading

import (
	"errors"
	"testing"
)

// standardKey is a fractional three-band key:
// [0,0.6) nicht bestanden, [0.6,0.75) befriedigend, [0.75,1.0] gut.
func standardKey() GradeKey {
	return GradeKey{
		Name: "standard",
		Max:  1,
		Bands: []Band{
			{Label: "nicht bestanden", Lower: 0, Upper: 0.6},
			{Label: "befriedigend", Lower: 0.6, Upper: 0.75},
			{Label: "gut", Lower: 0.75, Upper: 1.0},
		},
	}
}

func germanKey(t *testing.T) GradeKey {
	t.Helper()
	nk := DefaultGradeKey()
	return GradeKey{Name: nk.Name, Max: nk.Max, Bands: nk.Bands}
}

func TestGradeKeyResolve(t *testing.T) {
	std := standardKey()
	german := germanKey(t)

	tests := []struct {
		name     string
		key      GradeKey
		rawScore float64
		maxScore float64
		want     string
		wantErr  error
	}{
		{name: "boundary resolves to closed lower band", key: std, rawScore: 15, maxScore: 20, want: "gut"},
		{name: "below boundary stays in lower band", key: std, rawScore: 11.9, maxScore: 20, want: "nicht bestanden"},
		{name: "lower boundary of middle band", key: std, rawScore: 12, maxScore: 20, want: "befriedigend"},
		{name: "zero score", key: std, rawScore: 0, maxScore: 20, want: "nicht bestanden"},
		{name: "full score hits closed last band", key: std, rawScore: 20, maxScore: 20, want: "gut"},
		{name: "full percent inside open-ended band", key: german, rawScore: 50, maxScore: 50, want: "1.0"},
		{name: "92.99 percent is a 1.5", key: german, rawScore: 92.99, maxScore: 100, want: "1.5"},
		{name: "93 percent is a 1.0", key: german, rawScore: 93, maxScore: 100, want: "1.0"},
		{name: "18 of 40 lands at 45 percent", key: german, rawScore: 18, maxScore: 40, want: "4.5"},
		{name: "zero max score", key: std, rawScore: 1, maxScore: 0, wantErr: ErrOutOfRange},
		{
			name: "gap in a hand-built key surfaces",
			key: GradeKey{Max: 1, Bands: []Band{
				{Label: "low", Lower: 0, Upper: 0.4},
				{Label: "high", Lower: 0.6, Upper: 1.0},
			}},
			rawScore: 5, maxScore: 10,
			wantErr: ErrOutOfRange,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.key.Resolve(tt.rawScore, tt.maxScore)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Resolve() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestGradeKeyResolveCoversDomain sweeps the german key's domain and checks
// that every value resolves to exactly the band containing it.
func TestGradeKeyResolveCoversDomain(t *testing.T) {
	key := germanKey(t)
	for pct := 0.0; pct <= 100.0; pct += 0.25 {
		label, err := key.Resolve(pct, 100)
		if err != nil {
			t.Fatalf("Resolve(%v, 100) failed: %v", pct, err)
		}
		var want string
		for i, b := range key.Bands {
			if (pct >= b.Lower && pct < b.Upper) || (i == len(key.Bands)-1 && pct >= b.Lower) {
				want = b.Label
				break
			}
		}
		if label != want {
			t.Errorf("Resolve(%v, 100) = %q, want %q", pct, label, want)
		}
	}
}

func TestNewGradeKeyValidate(t *testing.T) {
	svc := newTestService(t)

	valid := []Band{
		{Label: "fail", Lower: 0, Upper: 50},
		{Label: "pass", Lower: 50, Upper: 100},
	}

	tests := []struct {
		name    string
		nk      NewGradeKey
		wantErr error
	}{
		{name: "valid two bands", nk: NewGradeKey{Name: "simple", Max: 100, Bands: valid}},
		{name: "valid unsorted input", nk: NewGradeKey{Name: "unsorted", Max: 100, Bands: []Band{valid[1], valid[0]}}},
		{name: "valid extra credit headroom", nk: NewGradeKey{Name: "headroom", Max: 100, Bands: []Band{
			{Label: "fail", Lower: 0, Upper: 50},
			{Label: "pass", Lower: 50, Upper: 105},
		}}},
		{name: "gap between bands", nk: NewGradeKey{Name: "gap", Max: 100, Bands: []Band{
			{Label: "fail", Lower: 0, Upper: 40},
			{Label: "pass", Lower: 50, Upper: 100},
		}}, wantErr: ErrInvalidRange},
		{name: "overlapping bands", nk: NewGradeKey{Name: "overlap", Max: 100, Bands: []Band{
			{Label: "fail", Lower: 0, Upper: 60},
			{Label: "pass", Lower: 50, Upper: 100},
		}}, wantErr: ErrInvalidRange},
		{name: "does not start at zero", nk: NewGradeKey{Name: "late start", Max: 100, Bands: []Band{
			{Label: "fail", Lower: 10, Upper: 50},
			{Label: "pass", Lower: 50, Upper: 100},
		}}, wantErr: ErrInvalidRange},
		{name: "stops short of max", nk: NewGradeKey{Name: "short", Max: 100, Bands: []Band{
			{Label: "fail", Lower: 0, Upper: 50},
			{Label: "pass", Lower: 50, Upper: 90},
		}}, wantErr: ErrInvalidRange},
		{name: "inverted band", nk: NewGradeKey{Name: "inverted", Max: 100, Bands: []Band{
			{Label: "fail", Lower: 50, Upper: 0},
			{Label: "pass", Lower: 50, Upper: 100},
		}}, wantErr: ErrInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nk.Validate(svc)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewGradeKeyValidateDuplicateName(t *testing.T) {
	svc := newTestService(t)

	nk := NewGradeKey{Name: "taken", Max: 1, Bands: standardKey().Bands}
	if err := nk.Validate(svc); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	if _, err := svc.CreateGradeKey(testCtx, nk); err != nil {
		t.Fatalf("CreateGradeKey() failed: %v", err)
	}

	dup := NewGradeKey{Name: "taken", Max: 1, Bands: standardKey().Bands}
	if err := dup.Validate(svc); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("Validate() error = %v, wantErr %v", err, ErrDuplicateName)
	}
}

// TestNewGradeKeyValidateExcludesOwnName covers the update path: revalidating a
// key under its unchanged name must not trip the uniqueness check against itself.
func TestNewGradeKeyValidateExcludesOwnName(t *testing.T) {
	svc := newTestService(t)

	nk := NewGradeKey{Name: "taken", Max: 1, Bands: standardKey().Bands}
	if err := nk.Validate(svc); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	key, err := svc.CreateGradeKey(testCtx, nk)
	if err != nil {
		t.Fatalf("CreateGradeKey() failed: %v", err)
	}
	if _, err = svc.CreateGradeKey(testCtx, NewGradeKey{Name: "other", Max: 1, Bands: standardKey().Bands}); err != nil {
		t.Fatalf("CreateGradeKey() failed: %v", err)
	}

	// band edit under the unchanged name
	update := NewGradeKey{Name: "taken", Max: 1, Bands: []Band{
		{Label: "fail", Lower: 0, Upper: 0.5},
		{Label: "pass", Lower: 0.5, Upper: 1.0},
	}}
	if err := update.Validate(svc, key); err != nil {
		t.Errorf("Validate() with own key excluded error = %v, want nil", err)
	}

	// renaming onto another key is still a duplicate
	steal := NewGradeKey{Name: "other", Max: 1, Bands: standardKey().Bands}
	if err := steal.Validate(svc, key); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("Validate() error = %v, wantErr %v", err, ErrDuplicateName)
	}
}

func TestParseDefinitionRoundTrip(t *testing.T) {
	key := germanKey(t)

	bands, err := ParseDefinition(key.Definition())
	if err != nil {
		t.Fatalf("ParseDefinition() failed: %v", err)
	}
	if len(bands) != len(key.Bands) {
		t.Fatalf("ParseDefinition() returned %d bands, want %d", len(bands), len(key.Bands))
	}
	for i, b := range bands {
		if b != key.Bands[i] {
			t.Errorf("band %d = %+v, want %+v", i, b, key.Bands[i])
		}
	}
}

func TestParseDefinitionMalformed(t *testing.T) {
	tests := []struct {
		name string
		def  string
	}{
		{name: "missing column", def: "1.0;93.0"},
		{name: "non numeric lower", def: "1.0;abc;100"},
		{name: "non numeric upper", def: "1.0;93.0;xyz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseDefinition(tt.def); !errors.Is(err, ErrInvalidRange) {
				t.Errorf("ParseDefinition() error = %v, wantErr %v", err, ErrInvalidRange)
			}
		})
	}
}
