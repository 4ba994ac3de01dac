package domain

import "fmt"

// BloodType is one of the eight ABO/Rh blood groups.
type BloodType string

const (
	BloodAPos  BloodType = "A+"
	BloodANeg  BloodType = "A-"
	BloodBPos  BloodType = "B+"
	BloodBNeg  BloodType = "B-"
	BloodABPos BloodType = "AB+"
	BloodABNeg BloodType = "AB-"
	BloodOPos  BloodType = "O+"
	BloodONeg  BloodType = "O-"
)

// AllBloodTypes lists the eight blood types in a fixed, stable order. Callers
// must not mutate the returned slice contents; copy it when a mutable list is
// needed.
func AllBloodTypes() []BloodType {
	return []BloodType{
		BloodAPos, BloodANeg,
		BloodBPos, BloodBNeg,
		BloodABPos, BloodABNeg,
		BloodOPos, BloodONeg,
	}
}

// Valid reports whether the value is one of the eight known blood types.
func (b BloodType) Valid() bool {
	switch b {
	case BloodAPos, BloodANeg, BloodBPos, BloodBNeg,
		BloodABPos, BloodABNeg, BloodOPos, BloodONeg:
		return true
	}

	return false
}

// ABO returns the ABO group portion of the blood type ("A", "B", "AB", "O").
func (b BloodType) ABO() string {
	if len(b) == 0 {
		return ""
	}

	return string(b[:len(b)-1])
}

// RhPositive reports whether the blood type carries the Rh factor.
func (b BloodType) RhPositive() bool {
	return len(b) > 0 && b[len(b)-1] == '+'
}

// ParseBloodType validates a raw string as a blood type. The unicode minus
// sometimes produced by UI layers is normalized to ASCII.
func ParseBloodType(raw string) (BloodType, error) {
	normalized := ""
	for _, r := range raw {
		if r == '−' || r == '–' { // minus sign, en dash
			normalized += "-"
		} else {
			normalized += string(r)
		}
	}

	b := BloodType(normalized)
	if !b.Valid() {
		return "", fmt.Errorf("unknown blood type %q", raw)
	}

	return b, nil
}
