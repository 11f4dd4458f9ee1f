package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEncounter(t *testing.T) {
	v, header := validatorFor(t)
	verdict := v.Validate(recordOf(header, row(map[string]string{ColDischargeDate: ""})))
	require.True(t, verdict.Passed())

	doc, err := BuildEncounter(verdict, Provenance{File: "in.csv", RunID: "r", Row: 1})
	require.NoError(t, err)
	assert.Nil(t, doc.Visit.DischargeDate)
	assert.Equal(t, int32(101), doc.Visit.RoomNumber)
	assert.Equal(t, "General", doc.Admin.Hospital)
	assert.Equal(t, "JOHN SMITH|2020-01-01|GENERAL", doc.Src.NaturalKey)

	b, err := json.Marshal(doc)
	require.NoError(t, err)
	var got map[string]map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Nil(t, got["visit"]["discharge_date"])
	assert.Equal(t, "1000.50", got["billing"]["amount"])
}

func TestBuildEncounter_Incomplete(t *testing.T) {
	_, err := BuildEncounter(Verdict{Values: map[string]Normalized{}}, Provenance{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errIncompleteVerdict)
}

func TestEncounter_Row(t *testing.T) {
	v, header := validatorFor(t)
	verdict := v.Validate(recordOf(header, row(map[string]string{
		ColName: "jane doe", ColGender: "FEMALE", ColAmount: "12.3",
	})))
	doc, err := BuildEncounter(verdict, Provenance{})
	require.NoError(t, err)

	got := doc.Row()
	require.Len(t, got, len(EncounterSchema))
	want := map[string]string{
		ColName:          "Jane Doe",
		ColGender:        "Female",
		ColBloodType:     "A+",
		ColAmount:        "12.3",
		ColAdmissionDate: "2020-01-01",
		ColDischargeDate: "2020-01-05",
		ColAge:           "30",
	}
	for i, col := range header {
		if w, ok := want[col]; ok {
			assert.Equal(t, w, got[i], col)
		}
	}
}
