package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFacilityData_UnmarshalMatchRecord(t *testing.T) {
	raw := `{"facility_name":"Sunrise","address":"123 Main St","city":"Austin","state":"TX",
		"zip_code":"78701","capacity":"120","latitude":"30.27","longitude":-97.74,"facility_type":"ALF",
		"match_confidence":0.92}`
	var fd FacilityData
	require.NoError(t, json.Unmarshal([]byte(raw), &fd))

	require.NotNil(t, fd.StreetAddress)
	assert.Equal(t, "123 Main St", *fd.StreetAddress)
	require.NotNil(t, fd.BedCount)
	assert.Equal(t, 120, *fd.BedCount)
	require.NotNil(t, fd.Latitude)
	assert.InDelta(t, 30.27, *fd.Latitude, 0.0001)
	assert.Equal(t, "ALF", *fd.FacilityType)
}

func TestFacilityData_ValueAndSet(t *testing.T) {
	var fd FacilityData
	assert.True(t, fd.Empty())

	_, ok := fd.Value(FieldCity)
	assert.False(t, ok)

	assert.True(t, fd.Set(FieldCity, "Austin"))
	assert.True(t, fd.Set(FieldBedCount, "90"))
	assert.False(t, fd.Set(FieldLatitude, "north"))

	v, ok := fd.Value(FieldCity)
	assert.True(t, ok)
	assert.Equal(t, "Austin", v)

	v, ok = fd.Value(FieldBedCount)
	assert.True(t, ok)
	assert.Equal(t, 90, v)
	assert.False(t, fd.Empty())
}

func TestHistorySource_Valid(t *testing.T) {
	assert.True(t, SourceFacilitySync.Valid())
	assert.True(t, HistorySource("bulk_import").Valid())
	assert.False(t, HistorySource("webhook").Valid())
}

func TestFacilityData_BlankStringsNotSupplied(t *testing.T) {
	var fd FacilityData
	require.NoError(t, json.Unmarshal([]byte(`{"street_address":"","address":"9 Elm Rd","city":"   ","state":null}`), &fd))

	require.NotNil(t, fd.StreetAddress)
	assert.Equal(t, "9 Elm Rd", *fd.StreetAddress)
	assert.Nil(t, fd.City)
	assert.Nil(t, fd.State)

	blank := "  "
	fd = FacilityData{City: &blank}
	_, ok := fd.Value(FieldCity)
	assert.False(t, ok)
	assert.True(t, fd.Empty())
}
