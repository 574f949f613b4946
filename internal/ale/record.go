package ale

import (
	"fmt"
	"regexp"
)

// SOPValueCount is the number of decimal tokens an ASC_SOP field must carry:
// slope, offset and power, three channels each.
const SOPValueCount = 9

// sopTokenPattern matches unsigned decimals with a mandatory fractional part.
// Signs and exponents are not part of the match.
var sopTokenPattern = regexp.MustCompile(`\d+\.\d+`)

// ShotRecord is one parsed data row.
type ShotRecord struct {
	// Source names the log the row came from (file path or caller label)
	Source string

	// Line is the 1-based line number of the row in Source
	Line int

	// RawName is the unparsed Name field
	RawName string

	// SOP holds exactly SOPValueCount tokens in slope, offset, power order
	SOP []string

	// Saturation is the ASC_SAT field verbatim
	Saturation string
}

// Slope returns the first SOP triplet.
func (r *ShotRecord) Slope() [3]string { return r.triplet(0) }

// Offset returns the second SOP triplet.
func (r *ShotRecord) Offset() [3]string { return r.triplet(1) }

// Power returns the third SOP triplet.
func (r *ShotRecord) Power() [3]string { return r.triplet(2) }

func (r *ShotRecord) triplet(n int) [3]string {
	var t [3]string
	copy(t[:], r.SOP[n*3:n*3+3])
	return t
}

// ParseSOP extracts the decimal tokens from an ASC_SOP field in order of appearance.
// The first SOPValueCount matches are returned; fewer is an error.
func ParseSOP(field string) ([]string, error) {
	tokens := sopTokenPattern.FindAllString(field, SOPValueCount)
	if len(tokens) < SOPValueCount {
		return nil, fmt.Errorf("expected %d SOP values in %q, found %d", SOPValueCount, field, len(tokens))
	}
	return tokens, nil
}
