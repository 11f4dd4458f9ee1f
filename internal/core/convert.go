package core

// convert.go provides the field normalizers that turn raw CSV text into typed
// values.
//
// Every normalizer is a pure function of its input. The ToPg* functions follow
// the pgtype convention: Valid=false means NULL, which covers both empty and
// unparsable input. Normalize layers the Valid/Invalid verdict on top so that
// an allowed empty value (NULL) is distinguishable from a bad one.

import (
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DateLayout is the only accepted date format.
const DateLayout = "2006-01-02"

// decimalRegex validates a plain decimal number: optional sign, digits with an
// optional fractional part. Exponents, currency symbols and separators are
// rejected.
var decimalRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// ToPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgInt4 parses a base-10 integer. Any residual character, including a
// decimal point, makes the value invalid.
func ToPgInt4(s string) pgtype.Int4 {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Int4{Valid: false}
	}
	i, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: int32(i), Valid: true}
}

// ToPgNumeric converts a string to an exact pgtype.Numeric. The scale of the
// input is preserved ("10.50" keeps two fractional digits).
func ToPgNumeric(s string) pgtype.Numeric {
	s = strings.TrimSpace(s)
	if s == "" || !decimalRegex.MatchString(s) {
		return pgtype.Numeric{Valid: false}
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

// ToPgDate parses a calendar date in DateLayout.
func ToPgDate(s string) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{Valid: false}
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: t, Valid: true}
}

// TitleCase title-cases free text ("jOHN smith" -> "John Smith").
func TitleCase(s string) string {
	// A Caser is stateful, so one is built per call.
	return cases.Title(language.Und).String(strings.TrimSpace(s))
}

// Capitalize upper-cases the first letter and lower-cases the rest.
func Capitalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// UpperCase trims and upper-cases s.
func UpperCase(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Normalized is the tagged outcome of normalizing one field. When Valid is
// false the value fields are zero. When Valid is true the field matching the
// spec's type is set; its own Valid flag is false only for an allowed empty
// value.
type Normalized struct {
	Valid   bool
	Text    string
	Int     pgtype.Int4
	Decimal pgtype.Numeric
	Date    pgtype.Date
}

// Normalize converts raw into the type described by spec.
func Normalize(spec FieldSpec, raw string) Normalized {
	s := strings.TrimSpace(raw)
	if spec.Normalizer != nil {
		s = spec.Normalizer(s)
	}

	if s == "" && spec.AllowEmpty {
		return Normalized{Valid: true}
	}

	switch spec.Type {
	case FieldInteger:
		v := ToPgInt4(s)
		return Normalized{Valid: v.Valid, Int: v}
	case FieldDecimal:
		v := ToPgNumeric(s)
		return Normalized{Valid: v.Valid, Decimal: v}
	case FieldDate:
		v := ToPgDate(s)
		return Normalized{Valid: v.Valid, Date: v}
	case FieldEnum:
		for _, ev := range spec.EnumValues {
			if s == ev {
				return Normalized{Valid: true, Text: s}
			}
		}
		return Normalized{}
	default:
		return Normalized{Valid: true, Text: s}
	}
}

// Decimal wraps an exact numeric so it serializes as a decimal string rather
// than a binary float.
type Decimal struct {
	pgtype.Numeric
}

// String renders the decimal in plain notation, keeping its scale.
func (d Decimal) String() string {
	if !d.Valid || d.Int == nil {
		return ""
	}
	if d.NaN {
		return "NaN"
	}

	digits := new(big.Int).Abs(d.Int).String()
	exp := int(d.Exp)
	switch {
	case exp > 0:
		digits += strings.Repeat("0", exp)
	case exp < 0:
		frac := -exp
		if len(digits) <= frac {
			digits = strings.Repeat("0", frac-len(digits)+1) + digits
		}
		digits = digits[:len(digits)-frac] + "." + digits[len(digits)-frac:]
	}

	if d.Int.Sign() < 0 {
		return "-" + digits
	}
	return digits
}

// MarshalJSON encodes the decimal as a JSON string, or null when invalid.
func (d Decimal) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(d.String())), nil
}

// MakeHeaderIndex creates a HeaderIndex from a CSV header row.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := HeaderIndex{
		exact:  make(map[string]int, len(header)),
		folded: make(map[string]int, len(header)),
	}
	for i, h := range header {
		name := strings.TrimSpace(h)
		if _, dup := idx.exact[name]; !dup {
			idx.exact[name] = i
		}
		key := strings.ToLower(name)
		if _, dup := idx.folded[key]; !dup {
			idx.folded[key] = i
		}
	}
	return idx
}

// Lookup returns the position of the named column.
func (h HeaderIndex) Lookup(name string) (int, bool) {
	name = strings.TrimSpace(name)
	if pos, ok := h.exact[name]; ok {
		return pos, true
	}
	pos, ok := h.folded[strings.ToLower(name)]
	return pos, ok
}
