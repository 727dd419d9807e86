// Package csvimport maps CSV exports onto CRM entities and submits them in
// fixed-size batches.
package csvimport

import (
	"errors"
	"sort"
)

// Kind controls how a cell is coerced.
type Kind int

const (
	KindText Kind = iota
	// KindList splits on ';' and trims each item.
	KindList
	// KindNumber parses a float; unparseable cells drop the field.
	KindNumber
	// KindBool is true for "yes"/"true" (any case), false otherwise.
	KindBool
)

type Field struct {
	Name string
	Kind Kind
}

var ErrUnknownEntity = errors.New("csvimport: unknown entity type")

var entityFields = map[string][]Field{
	"contacts": {
		{"first_name", KindText},
		{"last_name", KindText},
		{"email", KindText},
		{"phone", KindText},
		{"company", KindText},
		{"position", KindText},
		{"tags", KindList},
		{"newsletter", KindBool},
		{"notes", KindText},
	},
	"patients": {
		{"first_name", KindText},
		{"last_name", KindText},
		{"email", KindText},
		{"phone", KindText},
		{"date_of_birth", KindText},
		{"allergies", KindList},
		{"marketing_consent", KindBool},
		{"notes", KindText},
	},
	"leads": {
		{"title", KindText},
		{"email", KindText},
		{"phone", KindText},
		{"source", KindText},
		{"value", KindNumber},
		{"probability", KindNumber},
		{"tags", KindList},
	},
	"companies": {
		{"name", KindText},
		{"industry", KindText},
		{"website", KindText},
		{"employees", KindNumber},
		{"revenue", KindNumber},
		{"tags", KindList},
	},
}

// FieldsFor returns the importable fields of an entity type.
func FieldsFor(entity string) ([]Field, error) {
	f, ok := entityFields[entity]
	if !ok {
		return nil, ErrUnknownEntity
	}
	return f, nil
}

// Entities lists the importable entity types in sorted order.
func Entities() []string {
	out := make([]string, 0, len(entityFields))
	for name := range entityFields {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
