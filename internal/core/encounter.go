package core

import (
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
)

// Encounter is the normalized document persisted for an accepted record.
type Encounter struct {
	Patient Patient    `json:"patient"`
	Visit   Visit      `json:"visit"`
	Medical Medical    `json:"medical"`
	Admin   Admin      `json:"admin"`
	Billing Billing    `json:"billing"`
	Src     Provenance `json:"src"`
}

type Patient struct {
	Name      string `json:"name"`
	Age       int32  `json:"age"`
	Gender    string `json:"gender"`
	BloodType string `json:"blood_type"`
}

type Visit struct {
	AdmissionDate time.Time  `json:"admission_date"`
	DischargeDate *time.Time `json:"discharge_date"` // nil when not yet discharged
	AdmissionType string     `json:"admission_type"`
	RoomNumber    int32      `json:"room_number"`
}

type Medical struct {
	Condition   string `json:"condition"`
	Medication  string `json:"medication"`
	TestResults string `json:"test_results"`
}

type Admin struct {
	Doctor            string `json:"doctor"`
	Hospital          string `json:"hospital"`
	InsuranceProvider string `json:"insurance_provider"`
}

type Billing struct {
	Amount Decimal `json:"amount"`
}

// Provenance links a document back to the file and run it came from.
type Provenance struct {
	File       string    `json:"file"`
	RunID      string    `json:"run_id"`
	Row        int       `json:"row"`
	NaturalKey string    `json:"natural_key"`
	IngestedAt time.Time `json:"ingested_at"`
}

// errIncompleteVerdict is returned when an accepted verdict lacks a value it
// should carry. The record is rejected as UNKNOWN.
var errIncompleteVerdict = errors.New("verdict is missing normalized values")

// BuildEncounter assembles the document for an accepted verdict.
func BuildEncounter(v Verdict, src Provenance) (Encounter, error) {
	get := func(col string) (Normalized, bool) {
		n, ok := v.Values[col]
		return n, ok && n.Valid
	}

	var missing []string
	need := func(col string) Normalized {
		n, ok := get(col)
		if !ok {
			missing = append(missing, col)
		}
		return n
	}

	name := need(ColName)
	age := need(ColAge)
	gender := need(ColGender)
	blood := need(ColBloodType)
	adm := need(ColAdmissionDate)
	dis := need(ColDischargeDate)
	room := need(ColRoom)
	amount := need(ColAmount)
	admType := need(ColAdmissionType)
	cond := need(ColCondition)
	med := need(ColMedication)
	tests := need(ColTestResults)
	doctor := need(ColDoctor)
	hospital := need(ColHospital)
	insurer := need(ColInsurer)

	if len(missing) > 0 {
		return Encounter{}, errors.Wrapf(errIncompleteVerdict, "columns %v", missing)
	}

	var discharge *time.Time
	if dis.Date.Valid {
		t := dis.Date.Time
		discharge = &t
	}

	src.NaturalKey = v.Key.String()

	return Encounter{
		Patient: Patient{
			Name:      name.Text,
			Age:       age.Int.Int32,
			Gender:    gender.Text,
			BloodType: blood.Text,
		},
		Visit: Visit{
			AdmissionDate: adm.Date.Time,
			DischargeDate: discharge,
			AdmissionType: admType.Text,
			RoomNumber:    room.Int.Int32,
		},
		Medical: Medical{
			Condition:   cond.Text,
			Medication:  med.Text,
			TestResults: tests.Text,
		},
		Admin: Admin{
			Doctor:            doctor.Text,
			Hospital:          hospital.Text,
			InsuranceProvider: insurer.Text,
		},
		Billing: Billing{Amount: Decimal{amount.Decimal}},
		Src:     src,
	}, nil
}

// Row renders the encounter back into CSV columns in EncounterSchema order,
// using normalized values.
func (e Encounter) Row() []string {
	discharge := ""
	if e.Visit.DischargeDate != nil {
		discharge = e.Visit.DischargeDate.Format(DateLayout)
	}
	return []string{
		e.Patient.Name,
		itoa32(e.Patient.Age),
		e.Patient.Gender,
		e.Patient.BloodType,
		e.Medical.Condition,
		e.Visit.AdmissionDate.Format(DateLayout),
		e.Admin.Doctor,
		e.Admin.Hospital,
		e.Admin.InsuranceProvider,
		e.Billing.Amount.String(),
		itoa32(e.Visit.RoomNumber),
		e.Visit.AdmissionType,
		discharge,
		e.Medical.Medication,
		e.Medical.TestResults,
	}
}

func itoa32(i int32) string {
	return strconv.Itoa(int(i))
}
