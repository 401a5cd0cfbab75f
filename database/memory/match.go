package memory

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/gaborage/go-bricks-tx/database/types"
)

// toRaw encodes a filter or update document. nil is an empty document.
func toRaw(v any) (bson.Raw, error) {
	switch doc := v.(type) {
	case nil:
		return bson.Raw{5, 0, 0, 0, 0}, nil
	case bson.Raw:
		return doc, nil
	}
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// prepareInsert encodes document, adding an ObjectID _id when it has none.
func prepareInsert(document any) (bson.Raw, any, string, error) {
	data, err := bson.Marshal(document)
	if err != nil {
		return nil, nil, "", fmt.Errorf("encode document: %w", err)
	}
	raw := bson.Raw(data)

	idVal, err := raw.LookupErr("_id")
	if err != nil {
		var d bson.D
		if err := bson.Unmarshal(raw, &d); err != nil {
			return nil, nil, "", fmt.Errorf("decode document: %w", err)
		}
		d = append(bson.D{{Key: "_id", Value: bson.NewObjectID()}}, d...)
		if data, err = bson.Marshal(d); err != nil {
			return nil, nil, "", fmt.Errorf("encode document: %w", err)
		}
		raw = data
		idVal = raw.Lookup("_id")
	}

	var id any
	if err := idVal.Unmarshal(&id); err != nil {
		return nil, nil, "", fmt.Errorf("decode _id: %w", err)
	}
	return raw, id, keyOf(idVal), nil
}

func keyOf(v bson.RawValue) string {
	return fmt.Sprintf("%d:%x", v.Type, v.Value)
}

func matches(doc bson.Raw, filter bson.Raw) (bool, error) {
	elems, err := filter.Elements()
	if err != nil {
		return false, fmt.Errorf("invalid filter: %w", err)
	}
	for _, e := range elems {
		ok, err := matchElement(doc, e.Key(), e.Value())
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchElement(doc bson.Raw, key string, cond bson.RawValue) (bool, error) {
	switch key {
	case "$and", "$or", "$nor":
		return matchLogical(doc, key, cond)
	}
	if strings.HasPrefix(key, "$") {
		return false, fmt.Errorf("unsupported query operator %s", key)
	}

	field, err := doc.LookupErr(strings.Split(key, ".")...)
	present := err == nil

	if ops, ok := operatorDoc(cond); ok {
		return matchOperators(field, present, ops)
	}
	return valueMatches(field, present, cond), nil
}

func matchLogical(doc bson.Raw, op string, cond bson.RawValue) (bool, error) {
	subs, err := arrayValues(cond)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	hits := 0
	for _, sub := range subs {
		d, ok := sub.DocumentOK()
		if !ok {
			return false, fmt.Errorf("%s entries must be documents", op)
		}
		ok, err := matches(doc, d)
		if err != nil {
			return false, err
		}
		if ok {
			hits++
		}
	}

	switch op {
	case "$and":
		return hits == len(subs), nil
	case "$or":
		return hits > 0, nil
	default:
		return hits == 0, nil
	}
}

func operatorDoc(v bson.RawValue) (bson.Raw, bool) {
	d, ok := v.DocumentOK()
	if !ok {
		return nil, false
	}
	first, err := d.IndexErr(0)
	if err != nil {
		return nil, false
	}
	return d, strings.HasPrefix(first.Key(), "$")
}

func matchOperators(field bson.RawValue, present bool, ops bson.Raw) (bool, error) {
	elems, err := ops.Elements()
	if err != nil {
		return false, err
	}

	for _, e := range elems {
		arg := e.Value()
		var ok bool

		switch e.Key() {
		case "$eq":
			ok = valueMatches(field, present, arg)
		case "$ne":
			ok = !valueMatches(field, present, arg)
		case "$in", "$nin":
			candidates, err := arrayValues(arg)
			if err != nil {
				return false, fmt.Errorf("%s: %w", e.Key(), err)
			}
			ok = slices.ContainsFunc(candidates, func(c bson.RawValue) bool {
				return valueMatches(field, present, c)
			})
			if e.Key() == "$nin" {
				ok = !ok
			}
		case "$exists":
			ok = present == truthy(arg)
		case "$gt", "$gte", "$lt", "$lte":
			if !present {
				break
			}
			c, comparable := compareValues(field, arg)
			if !comparable {
				break
			}
			switch e.Key() {
			case "$gt":
				ok = c > 0
			case "$gte":
				ok = c >= 0
			case "$lt":
				ok = c < 0
			case "$lte":
				ok = c <= 0
			}
		default:
			return false, fmt.Errorf("unsupported query operator %s", e.Key())
		}

		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// valueMatches follows MongoDB equality: null matches a missing field and a
// scalar matches any element of an array field.
func valueMatches(field bson.RawValue, present bool, want bson.RawValue) bool {
	if want.Type == bson.TypeNull {
		return !present || field.Type == bson.TypeNull
	}
	if !present {
		return false
	}
	if equalValues(field, want) {
		return true
	}
	if field.Type == bson.TypeArray && want.Type != bson.TypeArray {
		elems, err := arrayValues(field)
		if err != nil {
			return false
		}
		return slices.ContainsFunc(elems, func(v bson.RawValue) bool {
			return equalValues(v, want)
		})
	}
	return false
}

func equalValues(a, b bson.RawValue) bool {
	if af, ok := numeric(a); ok {
		if bf, ok := numeric(b); ok {
			return af == bf
		}
	}
	return a.Type == b.Type && bytes.Equal(a.Value, b.Value)
}

func numeric(v bson.RawValue) (float64, bool) {
	switch v.Type {
	case bson.TypeInt32:
		return float64(v.Int32()), true
	case bson.TypeInt64:
		return float64(v.Int64()), true
	case bson.TypeDouble:
		return v.Double(), true
	}
	return 0, false
}

func truthy(v bson.RawValue) bool {
	if v.Type == bson.TypeBoolean {
		return v.Boolean()
	}
	if f, ok := numeric(v); ok {
		return f != 0
	}
	return v.Type != bson.TypeNull
}

func arrayValues(v bson.RawValue) ([]bson.RawValue, error) {
	arr, ok := v.ArrayOK()
	if !ok {
		return nil, errors.New("expected an array")
	}
	return arr.Values()
}

// compareValues orders values of the same kind.
func compareValues(a, b bson.RawValue) (int, bool) {
	if af, ok := numeric(a); ok {
		if bf, ok := numeric(b); ok {
			return cmp.Compare(af, bf), true
		}
		return 0, false
	}
	if a.Type != b.Type {
		return 0, false
	}

	switch a.Type {
	case bson.TypeString:
		return strings.Compare(a.StringValue(), b.StringValue()), true
	case bson.TypeDateTime:
		return cmp.Compare(a.DateTime(), b.DateTime()), true
	case bson.TypeBoolean:
		return cmp.Compare(boolRank(a.Boolean()), boolRank(b.Boolean())), true
	case bson.TypeObjectID:
		return bytes.Compare(a.Value, b.Value), true
	}
	return 0, false
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// typeRank approximates the BSON comparison order used for sorting.
func typeRank(v bson.RawValue, present bool) int {
	if !present {
		return 0
	}
	if _, ok := numeric(v); ok {
		return 2
	}
	switch v.Type {
	case bson.TypeNull:
		return 1
	case bson.TypeString:
		return 3
	case bson.TypeEmbeddedDocument:
		return 4
	case bson.TypeArray:
		return 5
	case bson.TypeObjectID:
		return 7
	case bson.TypeBoolean:
		return 8
	case bson.TypeDateTime:
		return 9
	}
	return 6
}

func sortCompare(a, b bson.Raw, sort bson.D) int {
	for _, key := range sort {
		path := strings.Split(key.Key, ".")
		av, aErr := a.LookupErr(path...)
		bv, bErr := b.LookupErr(path...)

		c := cmp.Compare(typeRank(av, aErr == nil), typeRank(bv, bErr == nil))
		if c == 0 && aErr == nil && bErr == nil {
			c, _ = compareValues(av, bv)
		}
		if c != 0 {
			if direction(key.Value) < 0 {
				return -c
			}
			return c
		}
	}
	return 0
}

func direction(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 1
}

func applyFindOptions(docs []bson.Raw, opts *types.FindOptions) []bson.Raw {
	if opts == nil {
		return docs
	}
	if len(opts.Sort) > 0 {
		slices.SortStableFunc(docs, func(a, b bson.Raw) int {
			return sortCompare(a, b, opts.Sort)
		})
	}
	if opts.Skip != nil && *opts.Skip > 0 {
		if int(*opts.Skip) >= len(docs) {
			return nil
		}
		docs = docs[*opts.Skip:]
	}
	if opts.Limit != nil && *opts.Limit > 0 && int(*opts.Limit) < len(docs) {
		docs = docs[:*opts.Limit]
	}
	return docs
}

// applyUpdate evaluates $set, $unset and $inc against doc.
func applyUpdate(doc bson.Raw, update bson.Raw) (bson.Raw, error) {
	ops, err := update.Elements()
	if err != nil {
		return nil, fmt.Errorf("invalid update: %w", err)
	}
	if len(ops) == 0 {
		return nil, errors.New("update document must not be empty")
	}

	var d bson.D
	if err := bson.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	for _, op := range ops {
		fields, ok := op.Value().DocumentOK()
		if !ok || !strings.HasPrefix(op.Key(), "$") {
			return nil, fmt.Errorf("update must use operators, got %q", op.Key())
		}
		elems, err := fields.Elements()
		if err != nil {
			return nil, err
		}

		for _, f := range elems {
			path := strings.Split(f.Key(), ".")
			if path[0] == "_id" {
				cur := doc.Lookup("_id")
				if op.Key() == "$set" && equalValues(cur, f.Value()) {
					continue
				}
				return nil, errors.New("_id is immutable")
			}

			switch op.Key() {
			case "$set":
				d = setPath(d, path, f.Value())
			case "$unset":
				d = unsetPath(d, path)
			case "$inc":
				cur, err := doc.LookupErr(path...)
				sum, incErr := increment(cur, err == nil, f.Value())
				if incErr != nil {
					return nil, fmt.Errorf("$inc %s: %w", f.Key(), incErr)
				}
				d = setPath(d, path, sum)
			default:
				return nil, fmt.Errorf("unsupported update operator %s", op.Key())
			}
		}
	}

	data, err := bson.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

func setPath(d bson.D, path []string, val any) bson.D {
	for i := range d {
		if d[i].Key != path[0] {
			continue
		}
		if len(path) == 1 {
			d[i].Value = val
		} else {
			d[i].Value = setPath(asD(d[i].Value), path[1:], val)
		}
		return d
	}

	if len(path) == 1 {
		return append(d, bson.E{Key: path[0], Value: val})
	}
	return append(d, bson.E{Key: path[0], Value: setPath(nil, path[1:], val)})
}

func unsetPath(d bson.D, path []string) bson.D {
	for i := range d {
		if d[i].Key != path[0] {
			continue
		}
		if len(path) == 1 {
			return slices.Delete(d, i, i+1)
		}
		if nested := asD(d[i].Value); nested != nil {
			d[i].Value = unsetPath(nested, path[1:])
		}
		return d
	}
	return d
}

func asD(v any) bson.D {
	switch doc := v.(type) {
	case bson.D:
		return doc
	case bson.M:
		out := make(bson.D, 0, len(doc))
		for _, k := range slices.Sorted(maps.Keys(doc)) {
			out = append(out, bson.E{Key: k, Value: doc[k]})
		}
		return out
	}
	return nil
}

func increment(cur bson.RawValue, present bool, by bson.RawValue) (any, error) {
	delta, ok := numeric(by)
	if !ok {
		return nil, errors.New("increment must be numeric")
	}
	if !present {
		return goNumber(by), nil
	}
	base, ok := numeric(cur)
	if !ok {
		return nil, errors.New("field is not numeric")
	}

	switch {
	case cur.Type == bson.TypeDouble || by.Type == bson.TypeDouble:
		return base + delta, nil
	case cur.Type == bson.TypeInt32 && by.Type == bson.TypeInt32:
		sum := int64(cur.Int32()) + int64(by.Int32())
		if sum == int64(int32(sum)) {
			return int32(sum), nil
		}
		return sum, nil
	default:
		return asInt64(cur) + asInt64(by), nil
	}
}

func goNumber(v bson.RawValue) any {
	switch v.Type {
	case bson.TypeInt32:
		return v.Int32()
	case bson.TypeInt64:
		return v.Int64()
	}
	return v.Double()
}

func asInt64(v bson.RawValue) int64 {
	if v.Type == bson.TypeInt32 {
		return int64(v.Int32())
	}
	return v.Int64()
}
