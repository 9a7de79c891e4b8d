// Package key estimates the musical key of a chroma profile by correlation
// against rotated major and minor templates.
package key

import (
	"fmt"
	"strings"
)

// PitchClass is one of the 12 equal-tempered pitch classes, C = 0.
type PitchClass int

const (
	NoPitch PitchClass = iota - 1
	C
	CSharp
	D
	DSharp
	E
	F
	FSharp
	G
	GSharp
	A
	ASharp
	B
)

var pitchNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// flat spellings accepted by ParsePitchClass
var flatNames = map[string]PitchClass{
	"Db": CSharp, "Eb": DSharp, "Gb": FSharp, "Ab": GSharp, "Bb": ASharp,
}

// Valid reports whether p is one of C..B.
func (p PitchClass) Valid() bool {
	return p >= C && p <= B
}

func (p PitchClass) String() string {
	if !p.Valid() {
		return "none"
	}
	return pitchNames[p]
}

func (p PitchClass) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *PitchClass) UnmarshalText(text []byte) error {
	v, err := ParsePitchClass(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParsePitchClass accepts sharp or flat spellings ("C#", "Db") and "none".
func ParsePitchClass(s string) (PitchClass, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return NoPitch, nil
	}
	for i, name := range pitchNames {
		if strings.EqualFold(name, s) {
			return PitchClass(i), nil
		}
	}
	for name, p := range flatNames {
		if strings.EqualFold(name, s) {
			return p, nil
		}
	}
	return NoPitch, fmt.Errorf("unknown pitch class %q", s)
}

// Scale is the mode of a key.
type Scale int

const (
	UnknownScale Scale = iota
	Major
	Minor
)

func (s Scale) String() string {
	switch s {
	case Major:
		return "major"
	case Minor:
		return "minor"
	}
	return "unknown"
}

func (s Scale) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Scale) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "major":
		*s = Major
	case "minor":
		*s = Minor
	case "unknown", "":
		*s = UnknownScale
	default:
		return fmt.Errorf("unknown scale %q", text)
	}
	return nil
}

// Key is a tonic and scale.
type Key struct {
	Tonic PitchClass `json:"tonic"`
	Scale Scale      `json:"scale"`
}

// None is returned when no key could be determined.
var None = Key{Tonic: NoPitch, Scale: UnknownScale}

// Known reports whether k names a real key.
func (k Key) Known() bool {
	return k.Tonic.Valid() && k.Scale != UnknownScale
}

func (k Key) String() string {
	if !k.Known() {
		return "none"
	}
	return k.Tonic.String() + " " + k.Scale.String()
}
