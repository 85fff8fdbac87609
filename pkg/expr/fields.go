package expr

import (
	"reflect"
	"strings"
	"sync"
)

var stringFieldCache sync.Map // reflect.Type -> []string

// StringFields returns the exported string and *string fields of a struct
// type, in declaration order, including fields promoted from embedded
// structs. Pointer types are dereferenced; any other kind has no
// discoverable fields. The scan runs once per type.
func StringFields(t reflect.Type) []string {
	if t == nil {
		return nil
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if v, ok := stringFieldCache.Load(t); ok {
		return append([]string(nil), v.([]string)...)
	}
	var out []string
	if t.Kind() == reflect.Struct {
		for _, f := range reflect.VisibleFields(t) {
			if !f.IsExported() || f.Anonymous {
				continue
			}
			ft := f.Type
			if ft.Kind() == reflect.String || (ft.Kind() == reflect.Pointer && ft.Elem().Kind() == reflect.String) {
				out = append(out, f.Name)
			}
		}
	}
	v, _ := stringFieldCache.LoadOrStore(t, out)
	return append([]string(nil), v.([]string)...)
}

// FieldMapping đổi tên member path sang tên ngoài (cột SQL, alias).
type FieldMapping struct{ M map[string]string }

func NewFieldMapping(m map[string]string) FieldMapping {
	if m == nil {
		m = map[string]string{}
	}
	return FieldMapping{M: m}
}

// Resolve returns the mapped name of field, trying an exact then a
// lowercase lookup, and falls back to field itself.
func (fm FieldMapping) Resolve(field string) string {
	if v, ok := fm.M[field]; ok {
		return v
	}
	if v, ok := fm.M[strings.ToLower(field)]; ok {
		return v
	}
	return field
}
