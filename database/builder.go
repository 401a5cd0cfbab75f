package database

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Builder provides a fluent interface for building filters and find
// options. Filters are ordered documents so that rendering is stable.
type Builder struct {
	match bson.D
	index map[string]int
	sort  bson.D
	skip  *int64
	limit *int64
}

// NewBuilder creates an empty filter builder
func NewBuilder() *Builder {
	return &Builder{index: make(map[string]int)}
}

// Where is shorthand for NewBuilder().WhereEq(field, value).
func Where(field string, value any) *Builder {
	return NewBuilder().WhereEq(field, value)
}

// WhereEq adds an equality condition, replacing any condition on field
func (b *Builder) WhereEq(field string, value any) *Builder {
	b.set(field, value)
	return b
}

// WhereNe adds a "not equal" condition
func (b *Builder) WhereNe(field string, value any) *Builder {
	b.addFieldCondition(field, "$ne", value)
	return b
}

// WhereGt adds a "greater than" condition
func (b *Builder) WhereGt(field string, value any) *Builder {
	b.addFieldCondition(field, "$gt", value)
	return b
}

// WhereGte adds a "greater than or equal" condition
func (b *Builder) WhereGte(field string, value any) *Builder {
	b.addFieldCondition(field, "$gte", value)
	return b
}

// WhereLt adds a "less than" condition
func (b *Builder) WhereLt(field string, value any) *Builder {
	b.addFieldCondition(field, "$lt", value)
	return b
}

// WhereLte adds a "less than or equal" condition
func (b *Builder) WhereLte(field string, value any) *Builder {
	b.addFieldCondition(field, "$lte", value)
	return b
}

// WhereIn adds an "in" condition
func (b *Builder) WhereIn(field string, values ...any) *Builder {
	b.addFieldCondition(field, "$in", bson.A(values))
	return b
}

// WhereNin adds a "not in" condition
func (b *Builder) WhereNin(field string, values ...any) *Builder {
	b.addFieldCondition(field, "$nin", bson.A(values))
	return b
}

// WhereExists adds an existence check condition
func (b *Builder) WhereExists(field string, exists bool) *Builder {
	b.addFieldCondition(field, "$exists", exists)
	return b
}

// WhereAnd adds an $and over the given filters
func (b *Builder) WhereAnd(filters ...bson.D) *Builder {
	return b.logical("$and", filters)
}

// WhereOr adds an $or over the given filters
func (b *Builder) WhereOr(filters ...bson.D) *Builder {
	return b.logical("$or", filters)
}

// WhereNor adds a $nor over the given filters
func (b *Builder) WhereNor(filters ...bson.D) *Builder {
	return b.logical("$nor", filters)
}

func (b *Builder) logical(op string, filters []bson.D) *Builder {
	if len(filters) == 0 {
		return b
	}
	arr := make(bson.A, 0, len(filters))
	for _, f := range filters {
		arr = append(arr, f)
	}
	b.set(op, arr)
	return b
}

// addFieldCondition adds an operator to field, merging with an existing
// operator document. An existing equality is replaced.
func (b *Builder) addFieldCondition(field, operator string, value any) {
	if i, ok := b.index[field]; ok {
		if ops, isDoc := b.match[i].Value.(bson.D); isDoc && isOperatorDoc(ops) {
			for j := range ops {
				if ops[j].Key == operator {
					ops[j].Value = value
					return
				}
			}
			b.match[i].Value = append(ops, bson.E{Key: operator, Value: value})
			return
		}
	}
	b.set(field, bson.D{{Key: operator, Value: value}})
}

func (b *Builder) set(field string, value any) {
	if i, ok := b.index[field]; ok {
		b.match[i].Value = value
		return
	}
	b.index[field] = len(b.match)
	b.match = append(b.match, bson.E{Key: field, Value: value})
}

func isOperatorDoc(d bson.D) bool {
	return len(d) > 0 && len(d[0].Key) > 0 && d[0].Key[0] == '$'
}

// OrderBy adds a sort field in ascending order
func (b *Builder) OrderBy(field string) *Builder {
	b.sort = append(b.sort, bson.E{Key: field, Value: 1})
	return b
}

// OrderByDesc adds a sort field in descending order
func (b *Builder) OrderByDesc(field string) *Builder {
	b.sort = append(b.sort, bson.E{Key: field, Value: -1})
	return b
}

// Skip sets the number of documents to skip
func (b *Builder) Skip(count int64) *Builder {
	b.skip = &count
	return b
}

// Limit sets the maximum number of documents to return
func (b *Builder) Limit(count int64) *Builder {
	b.limit = &count
	return b
}

// ToFilter builds the filter document. An empty builder matches everything.
func (b *Builder) ToFilter() bson.D {
	if len(b.match) == 0 {
		return bson.D{}
	}
	out := make(bson.D, len(b.match))
	copy(out, b.match)
	return out
}

// ToFindOptions builds find options from the sort and pagination settings.
// Returns nil when none were set.
func (b *Builder) ToFindOptions() *FindOptions {
	if len(b.sort) == 0 && b.skip == nil && b.limit == nil {
		return nil
	}
	opts := NewFindOptions()
	if len(b.sort) > 0 {
		opts.SetSort(b.sort)
	}
	if b.skip != nil {
		opts.SetSkip(*b.skip)
	}
	if b.limit != nil {
		opts.SetLimit(*b.limit)
	}
	return opts
}

// Update builds update documents from $set, $unset and $inc operators.
type Update struct {
	set   bson.D
	unset bson.D
	inc   bson.D
}

// NewUpdate creates an empty update
func NewUpdate() *Update {
	return &Update{}
}

// Set assigns a field. Dotted paths address embedded documents.
func (u *Update) Set(field string, value any) *Update {
	u.set = append(u.set, bson.E{Key: field, Value: value})
	return u
}

// Unset removes a field
func (u *Update) Unset(field string) *Update {
	u.unset = append(u.unset, bson.E{Key: field, Value: ""})
	return u
}

// Inc increments a numeric field, creating it when missing
func (u *Update) Inc(field string, by any) *Update {
	u.inc = append(u.inc, bson.E{Key: field, Value: by})
	return u
}

// IsEmpty reports whether no operator was added
func (u *Update) IsEmpty() bool {
	return len(u.set) == 0 && len(u.unset) == 0 && len(u.inc) == 0
}

// ToUpdate builds the update document
func (u *Update) ToUpdate() bson.D {
	out := bson.D{}
	if len(u.set) > 0 {
		out = append(out, bson.E{Key: "$set", Value: u.set})
	}
	if len(u.unset) > 0 {
		out = append(out, bson.E{Key: "$unset", Value: u.unset})
	}
	if len(u.inc) > 0 {
		out = append(out, bson.E{Key: "$inc", Value: u.inc})
	}
	return out
}
