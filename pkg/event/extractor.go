package event

import (
	"reflect"
	"slices"
	"strings"
)

// JSONFieldExtractor reads tracked fields by their json names, walking
// embedded structs such as model.Base.
type JSONFieldExtractor struct{}

func (JSONFieldExtractor) ExtractFields(obj interface{}, fields []string) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	if len(fields) == 0 {
		return out
	}
	if v, ok := structValue(obj); ok {
		walk(v, fields, out)
	}
	return out
}

// ExtractChanges reports every tracked field whose value differs, as
// {"before": x, "after": y}.
func (e JSONFieldExtractor) ExtractChanges(before, after interface{}, fields []string) map[string]interface{} {
	changes := make(map[string]interface{})
	if before == nil || after == nil {
		return changes
	}

	old := e.ExtractFields(before, fields)
	for name, value := range e.ExtractFields(after, fields) {
		prev, ok := old[name]
		if ok && reflect.DeepEqual(prev, value) {
			continue
		}
		changes[name] = map[string]interface{}{"before": prev, "after": value}
	}
	return changes
}

func structValue(obj interface{}) (reflect.Value, bool) {
	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	return v, v.Kind() == reflect.Struct
}

func walk(v reflect.Value, fields []string, out map[string]interface{}) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		switch {
		case !f.IsExported():
		case f.Anonymous && f.Type.Kind() == reflect.Struct:
			walk(v.Field(i), fields, out)
		default:
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				continue
			}
			if name == "" {
				name = strings.ToLower(f.Name)
			}
			if slices.Contains(fields, name) {
				out[name] = v.Field(i).Interface()
			}
		}
	}
}
