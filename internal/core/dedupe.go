package core

import "strings"

// keyDelimiter separates natural key parts. The ASCII unit separator does not
// occur in CSV text fields.
const keyDelimiter = "\x1f"

// NaturalKey identifies an encounter for duplicate detection only. It is never
// used as a storage key.
type NaturalKey string

// MakeNaturalKey builds the key from name, admission date and hospital.
// Each part is trimmed and upper-cased, so the key is insensitive to case and
// surrounding whitespace.
func MakeNaturalKey(name, admissionDate, hospital string) NaturalKey {
	return NaturalKey(strings.Join([]string{
		UpperCase(name),
		UpperCase(admissionDate),
		UpperCase(hospital),
	}, keyDelimiter))
}

// String renders the key with a readable separator.
func (k NaturalKey) String() string {
	return strings.ReplaceAll(string(k), keyDelimiter, "|")
}

// DuplicateDetector remembers every natural key seen during one run. The
// earliest row with a key wins; every later row with the same key is a
// duplicate. A detector must not be shared between runs or goroutines.
type DuplicateDetector struct {
	seen map[NaturalKey]int
}

// NewDuplicateDetector returns an empty detector.
func NewDuplicateDetector() *DuplicateDetector {
	return &DuplicateDetector{seen: make(map[NaturalKey]int)}
}

// Check records key for row. It returns the row that first used the key and
// whether row is a repeat of it.
func (d *DuplicateDetector) Check(key NaturalKey, row int) (firstRow int, duplicate bool) {
	if first, ok := d.seen[key]; ok {
		return first, true
	}
	d.seen[key] = row
	return row, false
}

// Len returns the number of distinct keys seen.
func (d *DuplicateDetector) Len() int {
	return len(d.seen)
}
