package sim

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"

	"github.com/gogpu/simviz"
)

// Settings structs describe each tunable with struct tags:
//
//	FeedRate float32 `mapstructure:"feed_rate" range:"0,0.1" rand:"uniform:0.01,0.08"`
//	Pattern  string  `mapstructure:"pattern" enum:"Uniform|Checkerboard" rand:"uniform"`
//
// range clamps numeric values, enum lists the accepted strings and rand
// selects the randomization distribution (uniform or triangular, with
// optional bounds that default to the range).

type field struct {
	index    []int
	name     string
	lo, hi   float64
	ranged   bool
	enum     []string
	dist     string
	dlo, dhi float64
}

func (f *field) clamp(x float64) float64 {
	if !f.ranged {
		return x
	}
	return min(max(x, f.lo), f.hi)
}

func (f *field) match(s string) (string, bool) {
	for _, e := range f.enum {
		if strings.EqualFold(e, s) {
			return e, true
		}
	}
	return "", false
}

var fieldCache sync.Map // reflect.Type -> []field

func fieldsOf(t reflect.Type) []field {
	if v, ok := fieldCache.Load(t); ok {
		return v.([]field)
	}
	var out []field
	for i := range t.NumField() {
		sf := t.Field(i)
		name, _, _ := strings.Cut(sf.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" || !sf.IsExported() {
			continue
		}
		f := field{index: sf.Index, name: name}
		if r := sf.Tag.Get("range"); r != "" {
			f.lo, f.hi, f.ranged = parseBounds(r)
		}
		if e := sf.Tag.Get("enum"); e != "" {
			f.enum = strings.Split(e, "|")
		}
		if d := sf.Tag.Get("rand"); d != "" {
			dist, bounds, ok := strings.Cut(d, ":")
			f.dist, f.dlo, f.dhi = dist, f.lo, f.hi
			if ok {
				f.dlo, f.dhi, _ = parseBounds(bounds)
			}
		}
		out = append(out, f)
	}
	fieldCache.Store(t, out)
	return out
}

func parseBounds(s string) (lo, hi float64, ok bool) {
	a, b, found := strings.Cut(s, ",")
	if !found {
		panic(fmt.Sprintf("sim: malformed bounds %q", s))
	}
	lo, err1 := strconv.ParseFloat(strings.TrimSpace(a), 64)
	hi, err2 := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if err1 != nil || err2 != nil || hi < lo {
		panic(fmt.Sprintf("sim: malformed bounds %q", s))
	}
	return lo, hi, true
}

func structOf(dst any) reflect.Value {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("sim: settings target %T is not a struct pointer", dst))
	}
	return v.Elem()
}

func lookup(fs []field, name string) (*field, bool) {
	for i := range fs {
		if fs[i].name == name {
			return &fs[i], true
		}
	}
	return nil, false
}

// HasField reports whether the settings struct declares name.
func HasField(dst any, name string) bool {
	_, ok := lookup(fieldsOf(structOf(dst).Type()), name)
	return ok
}

// SetField sets one tagged field from a loosely typed value. Unknown names
// fail with an InvalidSetting error; numbers are clamped to their range;
// unknown enum strings are logged and ignored.
func SetField(dst any, name string, value any) error {
	sv := structOf(dst)
	f, ok := lookup(fieldsOf(sv.Type()), name)
	if !ok {
		return simviz.InvalidSetting(name, "unknown setting")
	}
	if value == nil {
		return simviz.InvalidSetting(name, "missing value")
	}
	fv := sv.FieldByIndex(f.index)

	switch fv.Kind() {
	case reflect.Float32, reflect.Float64,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var x float64
		if err := mapstructure.WeakDecode(value, &x); err != nil {
			return simviz.InvalidSetting(name, "want a number, got %T", value)
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return simviz.InvalidSetting(name, "value %v is not finite", x)
		}
		setNumber(fv, f.clamp(x))
	case reflect.Bool:
		var b bool
		if err := mapstructure.WeakDecode(value, &b); err != nil {
			return simviz.InvalidSetting(name, "want a boolean, got %T", value)
		}
		fv.SetBool(b)
	case reflect.String:
		var s string
		if err := mapstructure.WeakDecode(value, &s); err != nil {
			return simviz.InvalidSetting(name, "want a string, got %T", value)
		}
		if len(f.enum) > 0 {
			m, ok := f.match(s)
			if !ok {
				simviz.Logger().Warn("sim: ignoring unknown value", "setting", name, "value", s, "accepted", f.enum)
				return nil
			}
			s = m
		}
		fv.SetString(s)
	default:
		nv := reflect.New(fv.Type())
		if err := mapstructure.WeakDecode(value, nv.Interface()); err != nil {
			return simviz.InvalidSetting(name, "%v", err)
		}
		fv.Set(nv.Elem())
	}
	return nil
}

func setNumber(fv reflect.Value, x float64) {
	switch fv.Kind() {
	case reflect.Float32, reflect.Float64:
		fv.SetFloat(x)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		fv.SetInt(int64(math.Round(x)))
	default:
		fv.SetUint(uint64(math.Round(max(x, 0))))
	}
}

// DecodeSettings replaces the fields of dst named in tree. Keys that match
// no field, values of the wrong shape and unknown enum strings fail the
// whole decode with a Serialization error and leave dst untouched.
func DecodeSettings(tree ValueTree, dst any) error {
	sv := structOf(dst)
	tmp := reflect.New(sv.Type())
	tmp.Elem().Set(sv)

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           tmp.Interface(),
	})
	if err != nil {
		return simviz.Serialization("settings decoder", err)
	}
	if err := dec.Decode(tree); err != nil {
		return simviz.Serialization("decode settings", err)
	}
	if err := normalize(tmp.Elem()); err != nil {
		return err
	}
	sv.Set(tmp.Elem())
	return nil
}

func normalize(sv reflect.Value) error {
	for _, f := range fieldsOf(sv.Type()) {
		fv := sv.FieldByIndex(f.index)
		switch fv.Kind() {
		case reflect.Float32, reflect.Float64:
			x := fv.Float()
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return simviz.Serialization(f.name+" is not finite", nil)
			}
			fv.SetFloat(f.clamp(x))
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			fv.SetInt(int64(f.clamp(float64(fv.Int()))))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			fv.SetUint(uint64(f.clamp(float64(fv.Uint()))))
		case reflect.String:
			if len(f.enum) == 0 {
				continue
			}
			m, ok := f.match(fv.String())
			if !ok {
				return simviz.Serialization(fmt.Sprintf("%s: unknown value %q", f.name, fv.String()), nil)
			}
			fv.SetString(m)
		}
	}
	return nil
}

// EncodeSettings returns the tagged fields of src as a value tree. float32
// values are widened through their shortest decimal form so 0.0367 stays
// 0.0367.
func EncodeSettings(src any) ValueTree {
	sv := reflect.Indirect(reflect.ValueOf(src))
	out := make(ValueTree)
	for _, f := range fieldsOf(sv.Type()) {
		fv := sv.FieldByIndex(f.index)
		if fv.Kind() == reflect.Float32 {
			x, _ := strconv.ParseFloat(strconv.FormatFloat(fv.Float(), 'g', -1, 32), 64)
			out[f.name] = x
			continue
		}
		out[f.name] = fv.Interface()
	}
	return out
}

// Randomize draws every field carrying a rand tag from its distribution.
func Randomize(dst any, rng *RNG) {
	sv := structOf(dst)
	for _, f := range fieldsOf(sv.Type()) {
		if f.dist == "" {
			continue
		}
		fv := sv.FieldByIndex(f.index)
		switch fv.Kind() {
		case reflect.Bool:
			fv.SetBool(rng.Bool())
		case reflect.String:
			if len(f.enum) > 0 {
				fv.SetString(f.enum[rng.IntN(len(f.enum))])
			}
		default:
			var x float64
			if f.dist == "triangular" {
				x = rng.Triangular(f.dlo, (f.dlo+f.dhi)/2, f.dhi)
			} else {
				x = rng.Uniform(f.dlo, f.dhi)
			}
			setNumber(fv, f.clamp(x))
		}
	}
}

// EnumIndex returns the position of value in the enum of the named field,
// or 0 when absent. Params uniforms carry enums as indices.
func EnumIndex(dst any, name, value string) uint32 {
	f, ok := lookup(fieldsOf(structOf(dst).Type()), name)
	if !ok {
		return 0
	}
	for i, e := range f.enum {
		if strings.EqualFold(e, value) {
			return uint32(i)
		}
	}
	return 0
}
