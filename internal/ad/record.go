package ad

import (
	"strings"
)

// nullToken is how a missing field is rendered inside a composite key.
// Collections written by earlier versions of the tool use the same token,
// so keys computed here match the stored ones.
const nullToken = "None"

// Record is the structured representation of one classified listing.
// Pointer fields are nil when the corresponding pattern did not match.
type Record struct {
	Area        *string  `json:"area"`
	Year        *string  `json:"year"`
	Rooms       *string  `json:"rooms"`
	PriceTotal  *string  `json:"price_total"`
	PricePerM   *string  `json:"price_per_m"`
	Floor       *string  `json:"floor"`
	HasParking  bool     `json:"hasParking"`
	HasStorage  bool     `json:"haStorage"`
	HasElevator bool     `json:"has_elevator"`
	Link        string   `json:"link"`
	District    *string  `json:"district,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lng         *float64 `json:"lng,omitempty"`
	MainKey     string   `json:"mainKey"`
}

// CompositeKey concatenates the record's field values in fixed order.
// Booleans are rendered as 0/1 and missing values as "None". The district
// is appended only when present; coordinates never take part in the key.
func (r *Record) CompositeKey() string {
	var b strings.Builder
	for _, v := range []*string{r.Area, r.Year, r.Rooms, r.PriceTotal, r.PricePerM, r.Floor} {
		writeOptional(&b, v)
	}
	writeBool(&b, r.HasParking)
	writeBool(&b, r.HasStorage)
	writeBool(&b, r.HasElevator)
	b.WriteString(r.Link)
	if r.District != nil {
		b.WriteString(*r.District)
	}
	return b.String()
}

// Seal computes the composite key and stores it in MainKey.
func (r *Record) Seal() {
	r.MainKey = r.CompositeKey()
}

// Key returns the stored MainKey, or the computed key when none is stored.
func (r *Record) Key() string {
	if r.MainKey != "" {
		return r.MainKey
	}
	return r.CompositeKey()
}

func writeOptional(b *strings.Builder, v *string) {
	if v == nil {
		b.WriteString(nullToken)
		return
	}
	b.WriteString(*v)
}

func writeBool(b *strings.Builder, v bool) {
	if v {
		b.WriteByte('1')
		return
	}
	b.WriteByte('0')
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
