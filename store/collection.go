package store

import "fmt"

// GetAll returns a copy of the value stored at name. A missing key yields an
// empty collection; a stored null is returned as nil.
func (d *DB) GetAll(name string) any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.doc[name]
	if !ok {
		return []any{}
	}
	return deepCopy(v)
}

// GetByID returns a copy of the first record in name whose id matches.
func (d *DB) GetByID(name string, id ID) (map[string]any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	recs, err := d.records(name)
	if err != nil {
		return nil, err
	}
	i := indexOf(recs, id)
	if i < 0 {
		return nil, fmt.Errorf("%s %s: %w", name, id, ErrNotFound)
	}
	return copyRecord(recs[i].(map[string]any)), nil
}

// Insert appends record to name as given and returns the stored copy.
func (d *DB) Insert(name string, record map[string]any) (map[string]any, error) {
	rec := copyRecord(record)
	if rec == nil {
		rec = map[string]any{}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.appendRecord(name, rec)
}

// InsertWithNewID appends record to name after setting its id to a fresh
// millisecond timestamp string. Any id the caller supplied is replaced.
func (d *DB) InsertWithNewID(name string, record map[string]any) (map[string]any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec := copyRecord(record)
	if rec == nil {
		rec = map[string]any{}
	}
	rec["id"] = d.nextID()
	return d.appendRecord(name, rec)
}

// InsertIfAbsent appends record unless name already holds a record with the
// same id, in which case ErrConflict is returned and nothing changes.
func (d *DB) InsertIfAbsent(name string, record map[string]any) (map[string]any, error) {
	id, ok := IDOf(record["id"])
	if !ok {
		return nil, ErrMissingID
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	recs, err := d.records(name)
	if err != nil {
		return nil, err
	}
	if indexOf(recs, id) >= 0 {
		return nil, fmt.Errorf("%s %s: %w", name, id, ErrConflict)
	}
	return d.appendRecord(name, copyRecord(record))
}

// Update shallow-merges patch into the record matching id. Fields absent
// from patch are kept and the stored id is never changed. ErrNotFound is
// returned, with nothing changed, if no record matches.
func (d *DB) Update(name string, id ID, patch map[string]any) (map[string]any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	recs, err := d.records(name)
	if err != nil {
		return nil, err
	}
	i := indexOf(recs, id)
	if i < 0 {
		return nil, fmt.Errorf("%s %s: %w", name, id, ErrNotFound)
	}
	old := recs[i].(map[string]any)
	merged := make(map[string]any, len(old)+len(patch))
	for k, v := range old {
		merged[k] = v
	}
	for k, v := range copyRecord(patch) {
		if k == "id" {
			continue
		}
		merged[k] = v
	}
	next := make([]any, len(recs))
	copy(next, recs)
	next[i] = merged
	if err := d.commit(map[string]any{name: next}); err != nil {
		return nil, err
	}
	return copyRecord(merged), nil
}

// Upsert stores {id, field: value} in name, replacing the whole record if
// one with the same id exists.
func (d *DB) Upsert(name string, id ID, field string, value any) (map[string]any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	recs, err := d.records(name)
	if err != nil {
		return nil, err
	}
	rec := map[string]any{"id": id.Value(), field: deepCopy(value)}
	next := make([]any, len(recs), len(recs)+1)
	copy(next, recs)
	if i := indexOf(recs, id); i >= 0 {
		next[i] = rec
	} else {
		next = append(next, rec)
	}
	if err := d.commit(map[string]any{name: next}); err != nil {
		return nil, err
	}
	return copyRecord(rec), nil
}

// Remove deletes every record in name whose id matches, or all records when
// id is nil. Removing nothing is not an error. The removed records are
// returned.
func (d *DB) Remove(name string, id *ID) ([]any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	recs, err := d.records(name)
	if err != nil {
		return nil, err
	}
	var kept, removed []any
	if id == nil {
		kept, removed = []any{}, recs
	} else {
		kept = make([]any, 0, len(recs))
		for _, r := range recs {
			if rec, ok := r.(map[string]any); ok && id.Matches(rec["id"]) {
				removed = append(removed, r)
				continue
			}
			kept = append(kept, r)
		}
	}
	if removed == nil {
		removed = []any{}
	}
	if len(removed) == 0 {
		return removed, nil
	}
	if err := d.commit(map[string]any{name: kept}); err != nil {
		return nil, err
	}
	out, _ := deepCopy(removed).([]any)
	return out, nil
}

// SetRaw stores value directly under name, replacing whatever was there.
func (d *DB) SetRaw(name string, value any) error {
	return d.SetRawMany(map[string]any{name: value})
}

// SetRawMany stores every pair of values at the document root with a single
// save.
func (d *DB) SetRawMany(values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	changes := make(map[string]any, len(values))
	for k, v := range values {
		changes[k] = deepCopy(v)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commit(changes)
}

// MergeMissing stores each pair of values whose key is not yet present and
// returns the keys it added.
func (d *DB) MergeMissing(values map[string]any) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	changes := map[string]any{}
	var added []string
	for k, v := range values {
		if _, ok := d.doc[k]; ok {
			continue
		}
		changes[k] = deepCopy(v)
		added = append(added, k)
	}
	if len(changes) == 0 {
		return nil, nil
	}
	if err := d.commit(changes); err != nil {
		return nil, err
	}
	return added, nil
}

func (d *DB) appendRecord(name string, rec map[string]any) (map[string]any, error) {
	recs, err := d.records(name)
	if err != nil {
		return nil, err
	}
	next := make([]any, len(recs), len(recs)+1)
	copy(next, recs)
	next = append(next, rec)
	if err := d.commit(map[string]any{name: next}); err != nil {
		return nil, err
	}
	return copyRecord(rec), nil
}

// indexOf returns the position of the first record whose id matches, or -1.
func indexOf(recs []any, id ID) int {
	for i, r := range recs {
		rec, ok := r.(map[string]any)
		if ok && id.Matches(rec["id"]) {
			return i
		}
	}
	return -1
}
