package ad

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() Record {
	return Record{
		Area:        StringPtr("150"),
		Year:        StringPtr("1398"),
		Rooms:       nil,
		PriceTotal:  StringPtr("1500000"),
		PricePerM:   nil,
		Floor:       StringPtr("3"),
		HasParking:  true,
		HasStorage:  false,
		HasElevator: true,
		Link:        "https://divar.ir/v/abc",
	}
}

func TestCompositeKeyFormat(t *testing.T) {
	r := sampleRecord()
	assert.Equal(t, "1501398None1500000None3101https://divar.ir/v/abc", r.CompositeKey())
}

func TestCompositeKeyDeterministic(t *testing.T) {
	a := sampleRecord()
	b := sampleRecord()
	assert.Equal(t, a.CompositeKey(), b.CompositeKey())
}

func TestCompositeKeyChangesWithAnyField(t *testing.T) {
	base := sampleRecord()
	baseKey := base.CompositeKey()

	mutations := map[string]func(r *Record){
		"area":     func(r *Record) { r.Area = StringPtr("151") },
		"year":     func(r *Record) { r.Year = nil },
		"rooms":    func(r *Record) { r.Rooms = StringPtr("2") },
		"price":    func(r *Record) { r.PriceTotal = StringPtr("1500001") },
		"per_m":    func(r *Record) { r.PricePerM = StringPtr("10") },
		"floor":    func(r *Record) { r.Floor = StringPtr("4") },
		"parking":  func(r *Record) { r.HasParking = false },
		"storage":  func(r *Record) { r.HasStorage = true },
		"elevator": func(r *Record) { r.HasElevator = false },
		"link":     func(r *Record) { r.Link = "https://divar.ir/v/xyz" },
		"district": func(r *Record) { r.District = StringPtr("6") },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			r := sampleRecord()
			mutate(&r)
			assert.NotEqual(t, baseKey, r.CompositeKey())
		})
	}
}

func TestCompositeKeyIgnoresCoordinates(t *testing.T) {
	a := sampleRecord()
	b := sampleRecord()
	lat, lng := 35.7, 51.4
	b.Lat, b.Lng = &lat, &lng
	assert.Equal(t, a.CompositeKey(), b.CompositeKey())
}

func TestRecordJSONUsesLegacyNames(t *testing.T) {
	r := sampleRecord()
	r.Seal()

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Equal(t, "150", raw["area"])
	assert.Nil(t, raw["rooms"])
	assert.Equal(t, true, raw["hasParking"])
	assert.Equal(t, false, raw["haStorage"])
	assert.Equal(t, r.MainKey, raw["mainKey"])
	assert.NotContains(t, raw, "district")
}

func TestKeyPrefersStoredMainKey(t *testing.T) {
	r := sampleRecord()
	assert.Equal(t, r.CompositeKey(), r.Key())

	r.MainKey = "stored"
	assert.Equal(t, "stored", r.Key())
}
