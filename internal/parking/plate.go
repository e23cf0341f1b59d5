package parking

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultPlatePattern is three letters followed by three digits.
const DefaultPlatePattern = `^[A-Z]{3}\d{3}$`

// PlateFormat validates licence plates after normalising them to upper case.
type PlateFormat struct {
	re *regexp.Regexp
}

func NewPlateFormat(pattern string) (*PlateFormat, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile plate pattern: %w", err)
	}
	return &PlateFormat{re: re}, nil
}

func defaultPlateFormat() *PlateFormat {
	return &PlateFormat{re: regexp.MustCompile(DefaultPlatePattern)}
}

// Normalize returns the canonical form of plate or ErrInvalidPlate.
func (p *PlateFormat) Normalize(plate string) (string, error) {
	normalized := NormalizePlate(plate)
	if normalized == "" || !p.re.MatchString(normalized) {
		return "", ErrInvalidPlate
	}
	return normalized, nil
}

func (p *PlateFormat) String() string {
	return p.re.String()
}

// NormalizePlate trims and upper-cases plate without validating it.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}
