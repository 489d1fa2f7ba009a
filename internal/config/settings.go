package config

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Settings is the opaque, module-specific settings bag of a module
// descriptor. The routing core never looks inside it; only the module's
// factory decodes it.
type Settings struct {
	val cty.Value
}

// NewSettings wraps a cty object value. A null or unknown value yields empty
// settings.
func NewSettings(v cty.Value) (Settings, error) {
	if v == cty.NilVal || v.IsNull() || !v.IsKnown() {
		return Settings{}, nil
	}
	ty := v.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return Settings{}, fmt.Errorf("module settings must be an object, got %s", ty.FriendlyName())
	}
	return Settings{val: v}, nil
}

// SettingsFromMap builds settings from plain Go data by way of JSON, the
// same path the YAML loader uses.
func SettingsFromMap(m map[string]any) (Settings, error) {
	if len(m) == 0 {
		return Settings{}, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return Settings{}, fmt.Errorf("module settings: %w", err)
	}
	ty, err := ctyjson.ImpliedType(raw)
	if err != nil {
		return Settings{}, fmt.Errorf("module settings: %w", err)
	}
	v, err := ctyjson.Unmarshal(raw, ty)
	if err != nil {
		return Settings{}, fmt.Errorf("module settings: %w", err)
	}
	return NewSettings(v)
}

// MustSettings is SettingsFromMap for literals in tests and tables.
func MustSettings(m map[string]any) Settings {
	s, err := SettingsFromMap(m)
	if err != nil {
		panic(err)
	}
	return s
}

// Value returns the underlying cty value, cty.EmptyObjectVal when empty.
func (s Settings) Value() cty.Value {
	if s.val == cty.NilVal {
		return cty.EmptyObjectVal
	}
	return s.val
}

// IsEmpty reports whether no settings were given.
func (s Settings) IsEmpty() bool { return len(s.attrs()) == 0 }

// Has reports whether key was set to a non-null value.
func (s Settings) Has(key string) bool {
	v, ok := s.attrs()[key]
	return ok && !v.IsNull()
}

// Keys returns the setting names in sorted order.
func (s Settings) Keys() []string {
	attrs := s.attrs()
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s Settings) attrs() map[string]cty.Value {
	if s.val == cty.NilVal || s.val.IsNull() || s.val.LengthInt() == 0 {
		return nil
	}
	return s.val.AsValueMap()
}

func (s Settings) get(key string) (cty.Value, bool) {
	v, ok := s.attrs()[key]
	if !ok || v.IsNull() || !v.IsKnown() {
		return cty.NilVal, false
	}
	return v, true
}

// String returns the string setting key, or def when it is absent.
func (s Settings) String(key, def string) (string, error) {
	v, ok := s.get(key)
	if !ok {
		return def, nil
	}
	var out string
	if err := decodePrimitive(v, cty.String, &out); err != nil {
		return "", fmt.Errorf("setting %q: %w", key, err)
	}
	return out, nil
}

// Int returns the integer setting key, or def when it is absent.
func (s Settings) Int(key string, def int) (int, error) {
	v, ok := s.get(key)
	if !ok {
		return def, nil
	}
	var out int
	if err := decodePrimitive(v, cty.Number, &out); err != nil {
		return 0, fmt.Errorf("setting %q: %w", key, err)
	}
	return out, nil
}

// Bool returns the boolean setting key, or def when it is absent.
func (s Settings) Bool(key string, def bool) (bool, error) {
	v, ok := s.get(key)
	if !ok {
		return def, nil
	}
	var out bool
	if err := decodePrimitive(v, cty.Bool, &out); err != nil {
		return false, fmt.Errorf("setting %q: %w", key, err)
	}
	return out, nil
}

// Duration returns the duration setting key, or def when it is absent. A
// string is parsed with time.ParseDuration; a bare number means milliseconds.
func (s Settings) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := s.get(key)
	if !ok {
		return def, nil
	}
	if v.Type() == cty.Number {
		bf := v.AsBigFloat()
		ms, _ := bf.Int64()
		return time.Duration(ms) * time.Millisecond, nil
	}
	var raw string
	if err := decodePrimitive(v, cty.String, &raw); err != nil {
		return 0, fmt.Errorf("setting %q: %w", key, err)
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("setting %q: %w", key, err)
	}
	return d, nil
}

// StringList returns the list-of-strings setting key, or def when absent.
func (s Settings) StringList(key string, def []string) ([]string, error) {
	v, ok := s.get(key)
	if !ok {
		return def, nil
	}
	var out []string
	if err := decode(v, reflect.ValueOf(&out)); err != nil {
		return nil, fmt.Errorf("setting %q: %w", key, err)
	}
	return out, nil
}

// Decode populates the struct pointed to by target. Fields are matched by
// their `cty:"name"` tag; attributes without a matching field are ignored,
// and fields without a matching attribute keep their current value, so
// callers preset defaults before decoding.
func (s Settings) Decode(target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("decode target must be a non-nil pointer, got %T", target)
	}
	if s.IsEmpty() {
		return nil
	}
	return decode(s.val, rv)
}

// decode recursively populates the value behind ptr from val.
func decode(val cty.Value, ptr reflect.Value) error {
	goPtr := ptr.Elem()
	goType := goPtr.Type()

	if goType == reflect.TypeOf(cty.Value{}) {
		if val.IsKnown() {
			goPtr.Set(reflect.ValueOf(val))
		}
		return nil
	}
	if !val.IsKnown() || val.IsNull() {
		return nil
	}

	switch goType.Kind() {
	case reflect.Struct:
		if !val.Type().IsObjectType() && !val.Type().IsMapType() {
			return fmt.Errorf("type mismatch: cannot decode %s into %s", val.Type().FriendlyName(), goType.String())
		}
		attrs := val.AsValueMap()
		for i := 0; i < goType.NumField(); i++ {
			field := goType.Field(i)
			fv := goPtr.Field(i)
			if !field.IsExported() || !fv.CanSet() {
				continue
			}
			tag := strings.Split(field.Tag.Get("cty"), ",")[0]
			if tag == "" && field.Anonymous && field.Type.Kind() == reflect.Struct {
				// Embedded structs share the parent's attributes.
				if err := decode(val, fv.Addr()); err != nil {
					return err
				}
				continue
			}
			if tag == "" || tag == "-" {
				continue
			}
			attr, ok := attrs[tag]
			if !ok {
				continue
			}
			if err := decode(attr, fv.Addr()); err != nil {
				return fmt.Errorf("in attribute '%s': %w", tag, err)
			}
		}
		return nil

	case reflect.Interface:
		native, err := toNative(val)
		if err != nil {
			return err
		}
		if native != nil {
			goPtr.Set(reflect.ValueOf(native))
		}
		return nil

	case reflect.Map:
		if goType.Key().Kind() != reflect.String {
			return fmt.Errorf("unsupported map key type %s", goType.Key())
		}
		if !val.CanIterateElements() {
			return fmt.Errorf("type mismatch: cannot decode %s into %s", val.Type().FriendlyName(), goType.String())
		}
		m := reflect.MakeMap(goType)
		it := val.ElementIterator()
		for it.Next() {
			k, ev := it.Element()
			elem := reflect.New(goType.Elem())
			if err := decode(ev, elem); err != nil {
				return fmt.Errorf("in map element '%s': %w", k.AsString(), err)
			}
			m.SetMapIndex(reflect.ValueOf(k.AsString()), elem.Elem())
		}
		goPtr.Set(m)
		return nil

	case reflect.Slice:
		ty := val.Type()
		if !ty.IsListType() && !ty.IsTupleType() && !ty.IsSetType() {
			return fmt.Errorf("type mismatch: cannot decode %s into %s", ty.FriendlyName(), goType.String())
		}
		s := reflect.MakeSlice(goType, val.LengthInt(), val.LengthInt())
		it := val.ElementIterator()
		for i := 0; it.Next(); i++ {
			_, ev := it.Element()
			if err := decode(ev, s.Index(i).Addr()); err != nil {
				return fmt.Errorf("in element %d: %w", i, err)
			}
		}
		goPtr.Set(s)
		return nil
	}

	if goType == reflect.TypeOf(time.Duration(0)) {
		d, err := Settings{val: cty.ObjectVal(map[string]cty.Value{"d": val})}.Duration("d", 0)
		if err != nil {
			return err
		}
		goPtr.SetInt(int64(d))
		return nil
	}

	want, err := gocty.ImpliedType(goPtr.Interface())
	if err != nil {
		return fmt.Errorf("unsupported field type %s: %w", goType.String(), err)
	}
	return decodePrimitive(val, want, ptr.Interface())
}

func decodePrimitive(val cty.Value, want cty.Type, target any) error {
	converted, err := convert.Convert(val, want)
	if err != nil {
		return fmt.Errorf("cannot use %s as %s: %w", val.Type().FriendlyName(), want.FriendlyName(), err)
	}
	return gocty.FromCtyValue(converted, target)
}

// toNative converts a cty value into plain Go data.
func toNative(val cty.Value) (any, error) {
	if val.IsNull() || !val.IsKnown() {
		return nil, nil
	}
	ty := val.Type()
	switch {
	case ty == cty.String:
		return val.AsString(), nil
	case ty == cty.Bool:
		return val.True(), nil
	case ty == cty.Number:
		bf := val.AsBigFloat()
		if bf.IsInt() {
			i, acc := bf.Int64()
			if acc == big.Exact {
				return i, nil
			}
		}
		f, _ := bf.Float64()
		return f, nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any, val.LengthInt())
		for k, v := range val.AsValueMap() {
			n, err := toNative(v)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, val.LengthInt())
		it := val.ElementIterator()
		for it.Next() {
			_, v := it.Element()
			n, err := toNative(v)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported cty type %s", ty.FriendlyName())
}

// Native returns the settings as plain Go data, for logging and status output.
func (s Settings) Native() map[string]any {
	n, err := toNative(s.Value())
	if err != nil {
		return nil
	}
	m, _ := n.(map[string]any)
	return m
}
