package phpserialize

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/tidwall/pretty"
)

// ErrInvalidUTF8 is returned by JSON projection under ErrorsStrict when a
// string is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("phpserialize: string is not valid UTF-8")

// classKey carries object identity in JSON output. A real property with
// this exact key wins over the metadata.
const classKey = "__class__"

// JSON projection of a value tree:
//
//	null/bool/int    as themselves
//	float            shortest round-trip decimal; NaN and infinities as null
//	string           JSON string per the errors policy
//	array            JSON array when keys are 0..n-1 in order, else object
//	object           properties merged with "__class__": name
//	custom object    {"__class__": name, "__data__": base64}
//	enum             {"__enum__": "Class:Case"}
//	reference        null (cycles are not expressible in JSON)

// ToJSON projects the value tree to a JSON text.
func ToJSON(v Value, policy ErrorsPolicy) (string, error) {
	buf, err := AppendJSON(nil, v, policy)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// ToJSONIndent is ToJSON with the output reformatted for humans.
func ToJSONIndent(v Value, policy ErrorsPolicy) (string, error) {
	buf, err := AppendJSON(nil, v, policy)
	if err != nil {
		return "", err
	}
	return string(pretty.Pretty(buf)), nil
}

// AppendJSON appends the JSON projection of v to dst and returns the
// extended buffer.
func AppendJSON(dst []byte, v Value, policy ErrorsPolicy) ([]byte, error) {
	p := &projector{buf: dst, policy: policy}
	if err := p.value(v); err != nil {
		return nil, err
	}
	return p.buf, nil
}

type projector struct {
	buf    []byte
	policy ErrorsPolicy
}

func (p *projector) value(v Value) error {
	switch v.Type() {
	case TypeNull:
		p.buf = append(p.buf, "null"...)
	case TypeBool:
		p.buf = strconv.AppendBool(p.buf, v.AsBool())
	case TypeInt:
		p.buf = strconv.AppendInt(p.buf, v.AsInt(), 10)
	case TypeFloat:
		f := v.AsFloat()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			p.buf = append(p.buf, "null"...)
		} else {
			p.buf = strconv.AppendFloat(p.buf, f, 'g', -1, 64)
		}
	case TypeString:
		return p.string(v.AsString().Bytes())
	case TypeArray:
		return p.array(v.AsArray())
	case TypeObject:
		return p.object(v.AsObject())
	case TypeCustomObject:
		c := v.AsCustomObject()
		p.buf = append(p.buf, `{"__class__":`...)
		if err := p.string(c.Class.Bytes()); err != nil {
			return err
		}
		p.buf = append(p.buf, `,"__data__":"`...)
		encStart := len(p.buf)
		encLen := base64.StdEncoding.EncodedLen(c.Data.Len())
		p.buf = append(p.buf, make([]byte, encLen)...)
		base64.StdEncoding.Encode(p.buf[encStart:], c.Data.Bytes())
		p.buf = append(p.buf, `"}`...)
	case TypeEnum:
		e := v.AsEnum()
		combined := make([]byte, 0, e.Class.Len()+1+e.Case.Len())
		combined = append(combined, e.Class.Bytes()...)
		combined = append(combined, ':')
		combined = append(combined, e.Case.Bytes()...)
		p.buf = append(p.buf, `{"__enum__":`...)
		if err := p.string(combined); err != nil {
			return err
		}
		p.buf = append(p.buf, '}')
	case TypeReference:
		p.buf = append(p.buf, "null"...)
	default:
		return fmt.Errorf("phpserialize: cannot project %s to JSON", v.Type())
	}
	return nil
}

// string writes a JSON string for raw bytes, honoring the errors policy
// for invalid UTF-8.
func (p *projector) string(b []byte) error {
	if utf8.Valid(b) {
		p.quoted(b)
		return nil
	}
	switch p.policy {
	case ErrorsStrict:
		return ErrInvalidUTF8
	case ErrorsBytes:
		p.buf = append(p.buf, `{"__bytes__":"`...)
		encStart := len(p.buf)
		encLen := base64.StdEncoding.EncodedLen(len(b))
		p.buf = append(p.buf, make([]byte, encLen)...)
		base64.StdEncoding.Encode(p.buf[encStart:], b)
		p.buf = append(p.buf, `"}`...)
		return nil
	default:
		p.quoted(replaceInvalid(b))
		return nil
	}
}

// key is like string but always produces a JSON string: object keys cannot
// be a bytes wrapper, so ErrorsBytes degrades to replacement here.
func (p *projector) key(b []byte) error {
	if utf8.Valid(b) {
		p.quoted(b)
		return nil
	}
	if p.policy == ErrorsStrict {
		return ErrInvalidUTF8
	}
	p.quoted(replaceInvalid(b))
	return nil
}

const hexDigits = "0123456789abcdef"

// quoted appends valid-UTF-8 bytes as a JSON string with standard escapes.
func (p *projector) quoted(b []byte) {
	p.buf = append(p.buf, '"')
	start := 0
	for i := 0; i < len(b); i++ {
		c := b[i]
		if c >= 0x20 && c != '"' && c != '\\' {
			continue
		}
		p.buf = append(p.buf, b[start:i]...)
		switch c {
		case '"':
			p.buf = append(p.buf, '\\', '"')
		case '\\':
			p.buf = append(p.buf, '\\', '\\')
		case '\n':
			p.buf = append(p.buf, '\\', 'n')
		case '\r':
			p.buf = append(p.buf, '\\', 'r')
		case '\t':
			p.buf = append(p.buf, '\\', 't')
		case '\b':
			p.buf = append(p.buf, '\\', 'b')
		case '\f':
			p.buf = append(p.buf, '\\', 'f')
		default:
			p.buf = append(p.buf, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
		}
		start = i + 1
	}
	p.buf = append(p.buf, b[start:]...)
	p.buf = append(p.buf, '"')
}

func replaceInvalid(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			out = utf8.AppendRune(out, utf8.RuneError)
		} else {
			out = append(out, b[:size]...)
		}
		b = b[size:]
	}
	return out
}

// isList reports whether the entries form a contiguous 0..n-1 integer key
// sequence in insertion order.
func isList(entries []Entry) bool {
	for i, e := range entries {
		if !e.Key.IsInt() || e.Key.AsInt() != int64(i) {
			return false
		}
	}
	return true
}

func (p *projector) array(a *Array) error {
	if isList(a.Entries) {
		p.buf = append(p.buf, '[')
		for i, e := range a.Entries {
			if i > 0 {
				p.buf = append(p.buf, ',')
			}
			if err := p.value(e.Value); err != nil {
				return err
			}
		}
		p.buf = append(p.buf, ']')
		return nil
	}

	p.buf = append(p.buf, '{')
	for i, e := range a.Entries {
		if i > 0 {
			p.buf = append(p.buf, ',')
		}
		if err := p.arrayKey(e.Key); err != nil {
			return err
		}
		p.buf = append(p.buf, ':')
		if err := p.value(e.Value); err != nil {
			return err
		}
	}
	p.buf = append(p.buf, '}')
	return nil
}

// arrayKey stringifies a map key: integers as digits, strings as-is,
// anything else via its debug form.
func (p *projector) arrayKey(k Value) error {
	switch k.Type() {
	case TypeInt:
		p.buf = append(p.buf, '"')
		p.buf = strconv.AppendInt(p.buf, k.AsInt(), 10)
		p.buf = append(p.buf, '"')
		return nil
	case TypeString:
		return p.key(k.AsString().Bytes())
	default:
		return p.key([]byte(k.GoString()))
	}
}

// object merges the class marker with the properties. Property keys are
// rendered through SplitPropertyName so private and protected names stay
// readable ("Class::name", "*name"). A real property named "__class__"
// suppresses the metadata.
func (p *projector) object(o *Object) error {
	p.buf = append(p.buf, '{')
	first := true
	if !hasClassKey(o.Properties) {
		p.buf = append(p.buf, `"__class__":`...)
		if err := p.string(o.Class.Bytes()); err != nil {
			return err
		}
		first = false
	}
	for _, e := range o.Properties {
		if !first {
			p.buf = append(p.buf, ',')
		}
		first = false
		if err := p.propertyKey(e.Key); err != nil {
			return err
		}
		p.buf = append(p.buf, ':')
		if err := p.value(e.Value); err != nil {
			return err
		}
	}
	p.buf = append(p.buf, '}')
	return nil
}

func hasClassKey(props []Entry) bool {
	for _, e := range props {
		if e.Key.IsString() && e.Key.AsString().String() == classKey {
			return true
		}
	}
	return false
}

func (p *projector) propertyKey(k Value) error {
	if !k.IsString() {
		return p.arrayKey(k)
	}
	name, vis, class := SplitPropertyName(k.AsString().Bytes())
	switch vis {
	case Private:
		rendered := make([]byte, 0, len(class)+2+len(name))
		rendered = append(rendered, class...)
		rendered = append(rendered, ':', ':')
		rendered = append(rendered, name...)
		return p.key(rendered)
	case Protected:
		rendered := make([]byte, 0, len(name)+1)
		rendered = append(rendered, '*')
		rendered = append(rendered, name...)
		return p.key(rendered)
	default:
		return p.key(name)
	}
}
