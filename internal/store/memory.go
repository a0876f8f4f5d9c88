package store

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memoryStore keeps collections of bson documents in process. It backs
// every service test and the STORE_BACKEND=memory dev mode. Records are
// normalized through bson marshalling so stored values carry the same
// primitive types the Mongo backend returns, and the platform's unique
// indexes are enforced here too.
type memoryStore struct {
	mu          sync.RWMutex
	collections map[string][]bson.M
	unique      map[string][][]string
}

func NewMemory() Store {
	return &memoryStore{
		collections: make(map[string][]bson.M),
		unique: map[string][][]string{
			Users:              {{"email"}, {"username"}},
			AchievementUnlocks: {{"user_id", "achievement_id"}},
			CloudSaves:         {{"user_id", "filename"}},
			WishlistItems:      {{"user_id", "game_id"}},
		},
	}
}

func (s *memoryStore) FindOne(_ context.Context, collection string, filter bson.M, out interface{}) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.collections[collection] {
		if matchFilter(doc, filter) {
			return decodeDoc(doc, out)
		}
	}
	return ErrNotFound
}

func (s *memoryStore) FindMany(_ context.Context, collection string, filter bson.M, out interface{}, opts ...FindOption) error {
	o := applyOptions(opts)

	s.mu.RLock()
	var matches []bson.M
	for _, doc := range s.collections[collection] {
		if matchFilter(doc, filter) {
			matches = append(matches, doc)
		}
	}
	s.mu.RUnlock()

	if o.sortField != "" {
		sort.SliceStable(matches, func(i, j int) bool {
			a, _ := lookupPath(matches[i], o.sortField)
			b, _ := lookupPath(matches[j], o.sortField)
			if o.sortAsc {
				return compareValues(a, b) < 0
			}
			return compareValues(a, b) > 0
		})
	}
	if o.limit > 0 && int64(len(matches)) > o.limit {
		matches = matches[:o.limit]
	}
	return decodeDocs(matches, out)
}

func (s *memoryStore) InsertOne(_ context.Context, collection string, record interface{}) (primitive.ObjectID, error) {
	doc, err := normalizeRecord(record)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("inserting into %s: %w", collection, ErrInvalidRecord)
	}

	id := primitive.NilObjectID
	if raw, ok := doc["_id"]; ok {
		oid, isOID := raw.(primitive.ObjectID)
		if !isOID {
			return primitive.NilObjectID, fmt.Errorf("inserting into %s: %w", collection, ErrInvalidRecord)
		}
		id = oid
	}
	if id.IsZero() {
		id = primitive.NewObjectID()
		doc["_id"] = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.collections[collection] {
		if valuesEqual(existing["_id"], id) {
			return primitive.NilObjectID, fmt.Errorf("inserting into %s: %w", collection, ErrDuplicateKey)
		}
	}
	if err := s.checkUnique(collection, doc, -1); err != nil {
		return primitive.NilObjectID, err
	}

	s.collections[collection] = append(s.collections[collection], doc)
	return id, nil
}

func (s *memoryStore) UpdateOne(_ context.Context, collection string, filter bson.M, patch bson.M, out interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	for i, doc := range docs {
		if !matchFilter(doc, filter) {
			continue
		}

		merged := make(bson.M, len(doc)+len(patch))
		for k, v := range doc {
			merged[k] = v
		}
		for k, v := range patch {
			merged[k] = v
		}

		normalized, err := normalizeRecord(merged)
		if err != nil {
			return fmt.Errorf("updating record in %s: %w", collection, err)
		}
		if err := s.checkUnique(collection, normalized, i); err != nil {
			return err
		}

		docs[i] = normalized
		if out != nil {
			return decodeDoc(normalized, out)
		}
		return nil
	}
	return ErrNotFound
}

func (s *memoryStore) DeleteOne(_ context.Context, collection string, filter bson.M) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	for i, doc := range docs {
		if matchFilter(doc, filter) {
			s.collections[collection] = append(docs[:i], docs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// checkUnique enforces the registered unique indexes against every
// document except the one at skip.
func (s *memoryStore) checkUnique(collection string, candidate bson.M, skip int) error {
	for _, fields := range s.unique[collection] {
		vals := make([]interface{}, 0, len(fields))
		missing := false
		for _, field := range fields {
			v, ok := lookupPath(candidate, field)
			if !ok || v == nil {
				missing = true
				break
			}
			vals = append(vals, v)
		}
		if missing {
			continue
		}

		for i, existing := range s.collections[collection] {
			if i == skip {
				continue
			}
			same := true
			for j, field := range fields {
				ev, ok := lookupPath(existing, field)
				if !ok || !valuesEqual(ev, vals[j]) {
					same = false
					break
				}
			}
			if same {
				return fmt.Errorf("writing to %s: %w", collection, ErrDuplicateKey)
			}
		}
	}
	return nil
}

// normalizeRecord round-trips a record through bson so stored values
// carry driver primitive types (primitive.DateTime, int64, bson.M).
func normalizeRecord(record interface{}) (bson.M, error) {
	data, err := bson.Marshal(record)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func normalizeValue(v interface{}) interface{} {
	doc, err := normalizeRecord(bson.M{"v": v})
	if err != nil {
		return v
	}
	return doc["v"]
}

func decodeDoc(doc bson.M, out interface{}) error {
	data, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	if err := bson.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding record: %w", err)
	}
	return nil
}

func decodeDocs(docs []bson.M, out interface{}) error {
	outVal := reflect.ValueOf(out)
	if outVal.Kind() != reflect.Ptr || outVal.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("decoding records: out must be a pointer to a slice")
	}

	sliceType := outVal.Elem().Type()
	result := reflect.MakeSlice(sliceType, 0, len(docs))
	for _, doc := range docs {
		elem := reflect.New(sliceType.Elem())
		if err := decodeDoc(doc, elem.Interface()); err != nil {
			return err
		}
		result = reflect.Append(result, elem.Elem())
	}
	outVal.Elem().Set(result)
	return nil
}

func lookupPath(doc bson.M, path string) (interface{}, bool) {
	var current interface{} = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(bson.M)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func matchFilter(doc bson.M, filter bson.M) bool {
	for key, want := range filter {
		if key == "$or" {
			if !matchAny(doc, want) {
				return false
			}
			continue
		}
		stored, _ := lookupPath(doc, key)
		if !matchCondition(stored, want) {
			return false
		}
	}
	return true
}

func matchCondition(stored, want interface{}) bool {
	if cond, ok := want.(bson.M); ok && isOperatorDoc(cond) {
		for op, arg := range cond {
			switch op {
			case "$in":
				if !valueIn(stored, arg) {
					return false
				}
			case "$ne":
				if valuesEqual(stored, arg) {
					return false
				}
			default:
				// Operators outside the documented subset never match.
				return false
			}
		}
		return true
	}
	return valuesEqual(stored, want)
}

func isOperatorDoc(m bson.M) bool {
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

func matchAny(doc bson.M, clauses interface{}) bool {
	val := reflect.ValueOf(clauses)
	if val.Kind() != reflect.Slice {
		return false
	}
	for i := 0; i < val.Len(); i++ {
		clause, ok := val.Index(i).Interface().(bson.M)
		if !ok {
			return false
		}
		if matchFilter(doc, clause) {
			return true
		}
	}
	return false
}

func valueIn(stored, list interface{}) bool {
	val := reflect.ValueOf(list)
	if val.Kind() != reflect.Slice && val.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < val.Len(); i++ {
		if valuesEqual(stored, val.Index(i).Interface()) {
			return true
		}
	}
	return false
}

func valuesEqual(stored, want interface{}) bool {
	want = normalizeValue(want)
	if sf, ok := toFloat(stored); ok {
		if wf, ok2 := toFloat(want); ok2 {
			return sf == wf
		}
	}
	return reflect.DeepEqual(stored, want)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func compareValues(a, b interface{}) int {
	switch av := a.(type) {
	case primitive.DateTime:
		if bv, ok := b.(primitive.DateTime); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case primitive.ObjectID:
		if bv, ok := b.(primitive.ObjectID); ok {
			return bytes.Compare(av[:], bv[:])
		}
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
	}
	return 0
}
