package core

// Column names of the encounter CSV.
const (
	ColName          = "Name"
	ColAge           = "Age"
	ColGender        = "Gender"
	ColBloodType     = "Blood Type"
	ColCondition     = "Medical Condition"
	ColAdmissionDate = "Date of Admission"
	ColDoctor        = "Doctor"
	ColHospital      = "Hospital"
	ColInsurer       = "Insurance Provider"
	ColAmount        = "Billing Amount"
	ColRoom          = "Room Number"
	ColAdmissionType = "Admission Type"
	ColDischargeDate = "Discharge Date"
	ColMedication    = "Medication"
	ColTestResults   = "Test Results"
)

// GenderValues and BloodTypes are the allowed canonical enum values.
var (
	GenderValues = []string{"Male", "Female"}
	BloodTypes   = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}
)

// EncounterSchema lists every required column in source order.
var EncounterSchema = []FieldSpec{
	{Name: ColName, Type: FieldText, Critical: true, Normalizer: TitleCase},
	{Name: ColAge, Type: FieldInteger, Reason: ReasonAge},
	{Name: ColGender, Type: FieldEnum, Reason: ReasonGender, EnumValues: GenderValues, Normalizer: Capitalize},
	{Name: ColBloodType, Type: FieldEnum, Reason: ReasonBlood, EnumValues: BloodTypes, Normalizer: UpperCase},
	{Name: ColCondition, Type: FieldText},
	{Name: ColAdmissionDate, Type: FieldDate, Reason: ReasonAdmission, Critical: true},
	{Name: ColDoctor, Type: FieldText},
	{Name: ColHospital, Type: FieldText, Critical: true},
	{Name: ColInsurer, Type: FieldText},
	{Name: ColAmount, Type: FieldDecimal, Reason: ReasonAmount},
	{Name: ColRoom, Type: FieldInteger, Reason: ReasonRoom},
	{Name: ColAdmissionType, Type: FieldText},
	{Name: ColDischargeDate, Type: FieldDate, Reason: ReasonDischarge, AllowEmpty: true},
	{Name: ColMedication, Type: FieldText},
	{Name: ColTestResults, Type: FieldText},
}

// RequiredColumns returns the column names of specs in order.
func RequiredColumns(specs []FieldSpec) []string {
	cols := make([]string, len(specs))
	for i, spec := range specs {
		cols[i] = spec.Name
	}
	return cols
}

// ColumnDiff compares a source header against the required schema.
type ColumnDiff struct {
	Present []string `json:"columns_present"`
	Missing []string `json:"missing_required_columns"`
	Extra   []string `json:"extra_columns"`
}

// DiffColumns reports which required columns are missing from header and which
// header columns are not part of the schema. A column whose name repeats a
// required column that resolved elsewhere is reported as extra.
func DiffColumns(header []string, specs []FieldSpec) ColumnDiff {
	diff := ColumnDiff{
		Present: append([]string(nil), header...),
		Missing: []string{},
		Extra:   []string{},
	}

	idx := MakeHeaderIndex(header)
	used := make(map[int]bool, len(specs))
	for _, spec := range specs {
		pos, ok := idx.Lookup(spec.Name)
		if !ok {
			diff.Missing = append(diff.Missing, spec.Name)
			continue
		}
		used[pos] = true
	}

	for i, h := range header {
		if !used[i] {
			diff.Extra = append(diff.Extra, h)
		}
	}

	return diff
}

// CheckHeader validates that every required column exists in header.
// It returns the header index and column diff, or a *SchemaError naming the
// missing columns.
func CheckHeader(header []string, specs []FieldSpec) (HeaderIndex, ColumnDiff, error) {
	diff := DiffColumns(header, specs)
	if len(diff.Missing) > 0 {
		return HeaderIndex{}, diff, &SchemaError{Missing: diff.Missing}
	}
	return MakeHeaderIndex(header), diff, nil
}
