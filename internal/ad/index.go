package ad

import "zephuris/divarworker/internal/normalize"

// Index is the dedup gate. The set loaded from the previous collection is
// never modified; keys persisted during the current run are tracked apart
// so an ad fetched again in a later iteration is not stored twice.
// Keys are compared with their digits folded to ASCII, since older
// collections stored Persian digits verbatim.
type Index struct {
	existing map[string]struct{}
	current  map[string]struct{}
}

// NewIndex builds an index over previously saved records
func NewIndex(records []Record) *Index {
	idx := &Index{
		existing: make(map[string]struct{}, len(records)),
		current:  make(map[string]struct{}),
	}
	for i := range records {
		idx.existing[normalize.ToASCIIDigits(records[i].Key())] = struct{}{}
	}
	return idx
}

// Contains reports whether key was saved before or during this run
func (i *Index) Contains(key string) bool {
	key = normalize.ToASCIIDigits(key)
	if _, ok := i.existing[key]; ok {
		return true
	}
	_, ok := i.current[key]
	return ok
}

// Remember marks key as persisted during this run
func (i *Index) Remember(key string) {
	i.current[normalize.ToASCIIDigits(key)] = struct{}{}
}

// Existing returns the number of keys loaded at startup
func (i *Index) Existing() int {
	return len(i.existing)
}

// Added returns the number of keys remembered during this run
func (i *Index) Added() int {
	return len(i.current)
}
