package core

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
)

// ReasonCode identifies why a record was rejected. The numeric order of the
// constants is the order codes are reported in.
type ReasonCode uint8

const (
	ReasonMalformed ReasonCode = iota + 1
	ReasonAge
	ReasonRoom
	ReasonAmount
	ReasonAdmission
	ReasonDischarge
	ReasonGender
	ReasonBlood
	ReasonCritical
	ReasonDuplicate
	ReasonUnknown

	reasonLimit
)

var reasonNames = [...]string{
	ReasonMalformed: "MALFORMED",
	ReasonAge:       "AGE",
	ReasonRoom:      "ROOM",
	ReasonAmount:    "AMOUNT",
	ReasonAdmission: "ADM",
	ReasonDischarge: "DIS",
	ReasonGender:    "GENDER",
	ReasonBlood:     "BLOOD",
	ReasonCritical:  "CRITICAL",
	ReasonDuplicate: "DUPLICATE",
	ReasonUnknown:   "UNKNOWN",
}

// String returns the code as written to reject logs and reports.
func (c ReasonCode) String() string {
	if c == 0 || c >= reasonLimit {
		return "INVALID"
	}
	return reasonNames[c]
}

// MarshalJSON encodes the code as its text form.
func (c ReasonCode) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes the text form written by MarshalJSON.
func (c *ReasonCode) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	code, ok := ParseReasonCode(name)
	if !ok {
		return errors.Newf("unknown reason code %q", name)
	}
	*c = code
	return nil
}

// ParseReasonCode returns the code for its text form.
func ParseReasonCode(s string) (ReasonCode, bool) {
	for c := ReasonMalformed; c < reasonLimit; c++ {
		if reasonNames[c] == s {
			return c, true
		}
	}
	return 0, false
}

// ReasonSet is an ordered set of reason codes. The zero value is empty.
type ReasonSet uint16

// Add returns the set with c included.
func (s ReasonSet) Add(c ReasonCode) ReasonSet {
	return s | 1<<c
}

// Has reports whether c is in the set.
func (s ReasonSet) Has(c ReasonCode) bool {
	return s&(1<<c) != 0
}

// Empty reports whether no code has been added.
func (s ReasonSet) Empty() bool {
	return s == 0
}

// Len returns the number of codes in the set.
func (s ReasonSet) Len() int {
	n := 0
	for c := ReasonMalformed; c < reasonLimit; c++ {
		if s.Has(c) {
			n++
		}
	}
	return n
}

// Codes returns the codes in report order.
func (s ReasonSet) Codes() []ReasonCode {
	codes := make([]ReasonCode, 0, s.Len())
	for c := ReasonMalformed; c < reasonLimit; c++ {
		if s.Has(c) {
			codes = append(codes, c)
		}
	}
	return codes
}

// String joins the codes with commas. A rejected record with an empty set is
// reported as UNKNOWN.
func (s ReasonSet) String() string {
	if s.Empty() {
		return ReasonUnknown.String()
	}
	codes := s.Codes()
	names := make([]string, len(codes))
	for i, c := range codes {
		names[i] = c.String()
	}
	return strings.Join(names, ",")
}

// MarshalJSON encodes the set as an array of code names.
func (s ReasonSet) MarshalJSON() ([]byte, error) {
	if s.Empty() {
		return json.Marshal([]ReasonCode{ReasonUnknown})
	}
	return json.Marshal(s.Codes())
}

// UnmarshalJSON decodes an array of code names.
func (s *ReasonSet) UnmarshalJSON(b []byte) error {
	var codes []ReasonCode
	if err := json.Unmarshal(b, &codes); err != nil {
		return err
	}
	var set ReasonSet
	for _, c := range codes {
		set = set.Add(c)
	}
	*s = set
	return nil
}
