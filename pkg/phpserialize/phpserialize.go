// Package phpserialize decodes the byte stream produced by PHP's
// serialize() into an in-memory value tree, or projects it directly to a
// JSON document.
//
// # Basic Usage
//
// Decode serialized data:
//
//	val, err := phpserialize.Parse([]byte(`a:1:{s:3:"key";i:42;}`))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(val.AsArray().Entries[0].Value.AsInt()) // 42
//
// Project straight to JSON:
//
//	js, err := phpserialize.ParseToJSON([]byte(`a:1:{s:3:"key";i:42;}`))
//	// {"key":42}
//
// # Supported Types
//
// All tags PHP's serialize() emits: null, booleans, integers, floats
// (including NAN, INF, -INF), byte strings, arrays, objects with
// visibility-mangled properties, custom-serialized objects (C), PHP 8.1
// enums (E), and back-references (R/r).
//
// # Zero Copy
//
// String values borrow from the input buffer wherever the bytes appear
// verbatim; keep the buffer alive as long as borrowed values are in use,
// or call Bytes.ToOwned on the slices you retain. When the DB-escape
// preprocessor rewrites the input, strings own their (rewritten) backing
// store and the original buffer can be dropped.
//
// # Malformed Lengths
//
// Producers that transcoded data after serializing it leave string
// lengths that disagree with the real byte count. By default the parser
// recovers using the intact `";` terminator and records a Diagnostic;
// WithStrict(true) turns the recovery into an ErrLengthMismatch failure.
package phpserialize

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Parse decodes one PHP serialized value. Trailing bytes after the value
// are accepted silently; construct a Deserializer and check Rest when
// they must be rejected.
func Parse(data []byte, opts ...Option) (Value, error) {
	d := NewDeserializer(data, opts...)
	return d.Deserialize()
}

// MustParse decodes serialized data and panics on error. Use only when
// the data is known valid.
func MustParse(data []byte, opts ...Option) Value {
	v, err := Parse(data, opts...)
	if err != nil {
		panic(fmt.Sprintf("phpserialize.MustParse: %v", err))
	}
	return v
}

// ParseToJSON decodes serialized data and projects it to a JSON text in
// one call. The deserializer's errors policy governs invalid UTF-8.
func ParseToJSON(data []byte, opts ...Option) (string, error) {
	d := NewDeserializer(data, opts...)
	v, err := d.Deserialize()
	if err != nil {
		return "", err
	}
	return ToJSON(v, d.errorsPolicy)
}

// ToGo converts a value tree to plain Go values:
//   - null → nil
//   - boolean → bool
//   - integer → int64
//   - float → float64
//   - string → string when valid UTF-8, else []byte
//   - array → []any when keys are 0..n-1 in order, else map[string]any
//     (stringified keys, last occurrence wins)
//   - object → map[string]any with "__class__" plus bare property names
//   - custom object → map[string]any{"__class__", "__data__": []byte}
//   - enum → string "Class:Case"
//   - reference → nil when unresolved
//
// Resolved (cyclic) trees are safe: a container reached again inside
// itself converts to nil at the inner occurrence.
func ToGo(v Value) any {
	return toGo(v, make(map[any]bool))
}

func toGo(v Value, seen map[any]bool) any {
	switch v.Type() {
	case TypeNull, TypeReference:
		return nil
	case TypeBool:
		return v.AsBool()
	case TypeInt:
		return v.AsInt()
	case TypeFloat:
		return v.AsFloat()
	case TypeString:
		s := v.AsString()
		if s.IsUTF8() {
			return s.String()
		}
		return append([]byte(nil), s.Bytes()...)
	case TypeArray:
		a := v.AsArray()
		if seen[a] {
			return nil
		}
		seen[a] = true
		defer delete(seen, a)
		if isList(a.Entries) {
			out := make([]any, len(a.Entries))
			for i, e := range a.Entries {
				out[i] = toGo(e.Value, seen)
			}
			return out
		}
		out := make(map[string]any, len(a.Entries))
		for _, e := range a.Entries {
			out[keyString(e.Key)] = toGo(e.Value, seen)
		}
		return out
	case TypeObject:
		o := v.AsObject()
		if seen[o] {
			return nil
		}
		seen[o] = true
		defer delete(seen, o)
		out := make(map[string]any, len(o.Properties)+1)
		out[classKey] = lossyString(o.Class)
		for _, e := range o.Properties {
			key := keyString(e.Key)
			if e.Key.IsString() {
				name, _, _ := SplitPropertyName(e.Key.AsString().Bytes())
				key = lossyString(Borrowed(name))
			}
			out[key] = toGo(e.Value, seen)
		}
		return out
	case TypeCustomObject:
		c := v.AsCustomObject()
		return map[string]any{
			classKey:   lossyString(c.Class),
			"__data__": append([]byte(nil), c.Data.Bytes()...),
		}
	case TypeEnum:
		e := v.AsEnum()
		return lossyString(e.Class) + ":" + lossyString(e.Case)
	default:
		return nil
	}
}

func lossyString(b Bytes) string {
	return strings.ToValidUTF8(b.String(), string(utf8.RuneError))
}
