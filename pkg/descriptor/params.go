package descriptor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Param declares one typed entry of a node's data.
type Param struct {
	Name        string
	Type        cty.Type   // cty.DynamicPseudoType accepts anything
	Default     *cty.Value // used when the key is absent or null
	Optional    bool       // absent without default binds None
	Description string
}

// Required reports whether the param must be present in node data.
func (p Param) Required() bool { return !p.Optional && p.Default == nil }

func (p Param) typ() cty.Type {
	if p.Type == cty.NilType {
		return cty.DynamicPseudoType
	}
	return p.Type
}

// bindParams converts data to the declared param types and applies defaults.
// Keys without a declared param are not copied; templates still reach them
// through the raw data.
func bindParams(params []Param, data map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(params))
	var problems []string
	for _, p := range params {
		raw, ok := data[p.Name]
		if !ok || raw == nil {
			switch {
			case p.Default != nil:
				v, err := convertParam(p, *p.Default)
				if err != nil {
					problems = append(problems, err.Error())
					continue
				}
				out[p.Name] = v
			case p.Optional:
				out[p.Name] = nil
			default:
				problems = append(problems, fmt.Sprintf("missing required parameter %q", p.Name))
			}
			continue
		}
		val, err := nativeToCty(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("parameter %q: %v", p.Name, err))
			continue
		}
		v, err := convertParam(p, val)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		out[p.Name] = v
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid data: %s", strings.Join(problems, "; "))
	}
	return out, nil
}

func convertParam(p Param, val cty.Value) (any, error) {
	conv, err := convert.Convert(val, p.typ())
	if err != nil {
		return nil, fmt.Errorf("parameter %q: want %s: %v", p.Name, p.typ().FriendlyName(), err)
	}
	native, err := ctyToNative(conv)
	if err != nil {
		return nil, fmt.Errorf("parameter %q: %v", p.Name, err)
	}
	return native, nil
}

// nativeToCty converts decoded JSON data (or DOT string data) to a cty value.
func nativeToCty(v any) (cty.Value, error) {
	switch x := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case string:
		return cty.StringVal(x), nil
	case bool:
		return cty.BoolVal(x), nil
	case json.Number:
		return cty.ParseNumberVal(x.String())
	case float64:
		return cty.NumberFloatVal(x), nil
	case int:
		return cty.NumberIntVal(int64(x)), nil
	case int64:
		return cty.NumberIntVal(x), nil
	case []string:
		elems := make([]any, len(x))
		for i, s := range x {
			elems[i] = s
		}
		return nativeToCty(elems)
	case []any:
		if len(x) == 0 {
			return cty.EmptyTupleVal, nil
		}
		vals := make([]cty.Value, len(x))
		for i, e := range x {
			cv, err := nativeToCty(e)
			if err != nil {
				return cty.NilVal, fmt.Errorf("element %d: %w", i, err)
			}
			vals[i] = cv
		}
		return cty.TupleVal(vals), nil
	case map[string]any:
		if len(x) == 0 {
			return cty.EmptyObjectVal, nil
		}
		attrs := make(map[string]cty.Value, len(x))
		for k, e := range x {
			cv, err := nativeToCty(e)
			if err != nil {
				return cty.NilVal, fmt.Errorf("in attribute %q: %w", k, err)
			}
			attrs[k] = cv
		}
		return cty.ObjectVal(attrs), nil
	}
	return cty.NilVal, fmt.Errorf("unsupported data value of type %T", v)
}

// ctyToNative recursively converts a cty.Value to its most natural Go
// counterpart. Numbers become json.Number so they render exactly as written.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			return json.Number(bf.Text('f', 0)), nil
		}
		f, _ := bf.Float64()
		return json.Number(strconv.FormatFloat(f, 'g', -1, 64)), nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		slice := make([]any, 0)
		it := v.ElementIterator()
		for it.Next() {
			_, ev := it.Element()
			nv, err := ctyToNative(ev)
			if err != nil {
				return nil, err
			}
			slice = append(slice, nv)
		}
		return slice, nil

	case ty.IsObjectType() || ty.IsMapType():
		goMap := make(map[string]any)
		it := v.ElementIterator()
		for it.Next() {
			key, ev := it.Element()
			nv, err := ctyToNative(ev)
			if err != nil {
				return nil, fmt.Errorf("in attribute %q: %w", key.AsString(), err)
			}
			goMap[key.AsString()] = nv
		}
		return goMap, nil
	}
	return nil, fmt.Errorf("unsupported cty type %s", ty.FriendlyName())
}
