package key

import (
	"fmt"
	"strings"
)

// Profile selects a pair of major/minor key templates.
type Profile int

const (
	Krumhansl Profile = iota // Krumhansl-Schmuckler listener ratings
	Temperley                // Corpus statistics
	EDMA                     // Electronic dance music
	Bgate
)

// Profiles lists every profile in a stable order.
var Profiles = []Profile{Krumhansl, Temperley, EDMA, Bgate}

type profileWeights struct {
	name  string
	major [12]float64
	minor [12]float64
}

var profileTable = map[Profile]profileWeights{
	Krumhansl: {
		name:  "krumhansl",
		major: [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88},
		minor: [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17},
	},
	Temperley: {
		name:  "temperley",
		major: [12]float64{5.0, 2.0, 3.5, 2.0, 4.5, 4.0, 2.0, 4.5, 2.0, 3.5, 1.5, 4.0},
		minor: [12]float64{5.0, 2.0, 3.5, 4.5, 2.0, 4.0, 2.0, 4.5, 3.5, 2.0, 1.5, 4.0},
	},
	EDMA: {
		name:  "edma",
		major: [12]float64{17.7661, 0.145624, 14.9265, 0.160186, 19.8049, 11.3587, 0.291248, 22.062, 0.145624, 8.15494, 0.232998, 4.95122},
		minor: [12]float64{18.2648, 0.737619, 14.0499, 16.8599, 0.702494, 14.4362, 0.702494, 18.6161, 4.56621, 1.93186, 7.37619, 1.75623},
	},
	Bgate: {
		name:  "bgate",
		major: [12]float64{16.8, 0.86, 12.95, 1.41, 13.49, 11.93, 1.25, 20.28, 1.80, 8.04, 0.62, 10.57},
		minor: [12]float64{18.16, 0.69, 12.99, 13.34, 1.07, 11.15, 1.38, 21.07, 7.49, 1.53, 6.24, 1.61},
	},
}

func (p Profile) String() string {
	if w, ok := profileTable[p]; ok {
		return w.name
	}
	return fmt.Sprintf("Profile(%d)", int(p))
}

func (p Profile) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Profile) UnmarshalText(text []byte) error {
	v, err := ParseProfile(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParseProfile resolves a profile name case-insensitively.
func ParseProfile(name string) (Profile, error) {
	for _, p := range Profiles {
		if strings.EqualFold(p.String(), strings.TrimSpace(name)) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown key profile %q", name)
}
