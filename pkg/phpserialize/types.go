package phpserialize

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Type represents the type of a PHP value.
type Type uint8

const (
	TypeNull Type = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeString
	TypeArray
	TypeObject
	TypeCustomObject
	TypeEnum
	TypeReference
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeBool:
		return "boolean"
	case TypeInt:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeArray:
		return "array"
	case TypeObject:
		return "object"
	case TypeCustomObject:
		return "custom object"
	case TypeEnum:
		return "enum"
	case TypeReference:
		return "reference"
	default:
		return fmt.Sprintf("Type(%d)", t)
	}
}

// Bytes is a byte string that either borrows from the parse input or owns
// its backing store. Borrowed bytes are valid only as long as the buffer
// handed to the parser; owned bytes outlive it.
type Bytes struct {
	data  []byte
	owned bool
}

// Borrowed wraps a slice of the live input buffer.
func Borrowed(b []byte) Bytes {
	return Bytes{data: b}
}

// Owned wraps bytes whose backing store belongs to the value tree.
func Owned(b []byte) Bytes {
	return Bytes{data: b, owned: true}
}

// Bytes returns the raw bytes. The slice must not be mutated.
func (b Bytes) Bytes() []byte {
	return b.data
}

// Owned reports whether the bytes are independent of the parse input.
func (b Bytes) Owned() bool {
	return b.owned
}

// Len returns the byte length.
func (b Bytes) Len() int {
	return len(b.data)
}

// String returns the bytes as a Go string. The result is a copy.
func (b Bytes) String() string {
	return string(b.data)
}

// IsUTF8 reports whether the bytes are valid UTF-8.
func (b Bytes) IsUTF8() bool {
	return utf8.Valid(b.data)
}

// ToOwned returns an equivalent Bytes that does not alias the input buffer.
func (b Bytes) ToOwned() Bytes {
	if b.owned {
		return b
	}
	return Owned(bytes.Clone(b.data))
}

// Value represents a decoded PHP value.
// Use the accessor methods to safely extract typed payloads.
type Value struct {
	typ  Type
	data any
}

// Entry is one key/value pair of an array or one property of an object.
// Keys are full values: the producer restricts them to integers and
// strings, but the parser does not enforce that.
type Entry struct {
	Key   Value
	Value Value
}

// Array is an ordered sequence of entries. Insertion order and duplicate
// keys are preserved exactly as read.
type Array struct {
	Entries []Entry
}

// Object is a class-tagged bag of ordered properties. Private property
// keys arrive as "\x00Class\x00name" and protected ones as "\x00*\x00name";
// the parser stores them verbatim (see SplitPropertyName).
type Object struct {
	Class      Bytes
	Properties []Entry
}

// CustomObject is a class implementing its own serialization (the C tag).
// The body is captured verbatim; it is not parsed.
type CustomObject struct {
	Class Bytes
	Data  Bytes
}

// EnumCase is a PHP 8.1 enum constant (the E tag).
type EnumCase struct {
	Class Bytes
	Case  Bytes
}

// RefKind distinguishes the two reference tags.
type RefKind uint8

const (
	// RefValue is the R tag: an alias of a previously decoded variable.
	RefValue RefKind = iota
	// RefObject is the r tag: a shared pointer to a previously decoded object.
	RefObject
)

func (k RefKind) String() string {
	if k == RefObject {
		return "r"
	}
	return "R"
}

// Reference is a back-reference into the reference table. Index is
// 1-based; slot assignment order is defined by the parser. The target is
// not materialised during parsing (see Resolve).
type Reference struct {
	Kind  RefKind
	Index int
}

// Null returns the PHP null value.
func Null() Value {
	return Value{typ: TypeNull}
}

// Bool returns a PHP boolean value.
func Bool(b bool) Value {
	return Value{typ: TypeBool, data: b}
}

// Int returns a PHP integer value.
func Int(n int64) Value {
	return Value{typ: TypeInt, data: n}
}

// Float returns a PHP float value.
func Float(f float64) Value {
	return Value{typ: TypeFloat, data: f}
}

// String returns a PHP string value.
func String(b Bytes) Value {
	return Value{typ: TypeString, data: b}
}

// NewArray returns a PHP array value over the given entries.
func NewArray(entries []Entry) Value {
	return Value{typ: TypeArray, data: &Array{Entries: entries}}
}

// NewObject returns a PHP object value.
func NewObject(o *Object) Value {
	return Value{typ: TypeObject, data: o}
}

// NewCustomObject returns a custom-serialized object value.
func NewCustomObject(c *CustomObject) Value {
	return Value{typ: TypeCustomObject, data: c}
}

// NewEnum returns a PHP enum constant value.
func NewEnum(e *EnumCase) Value {
	return Value{typ: TypeEnum, data: e}
}

// NewReference returns an unresolved back-reference value.
func NewReference(kind RefKind, index int) Value {
	return Value{typ: TypeReference, data: Reference{Kind: kind, Index: index}}
}

// Type returns the PHP type of this value.
func (v Value) Type() Type {
	return v.typ
}

// IsNull returns true if this value is PHP null.
func (v Value) IsNull() bool {
	return v.typ == TypeNull
}

// IsBool returns true if this value is a boolean.
func (v Value) IsBool() bool {
	return v.typ == TypeBool
}

// IsInt returns true if this value is an integer.
func (v Value) IsInt() bool {
	return v.typ == TypeInt
}

// IsFloat returns true if this value is a float.
func (v Value) IsFloat() bool {
	return v.typ == TypeFloat
}

// IsString returns true if this value is a string.
func (v Value) IsString() bool {
	return v.typ == TypeString
}

// IsArray returns true if this value is an array.
func (v Value) IsArray() bool {
	return v.typ == TypeArray
}

// IsObject returns true if this value is an object.
func (v Value) IsObject() bool {
	return v.typ == TypeObject
}

// IsReference returns true if this value is an unresolved back-reference.
func (v Value) IsReference() bool {
	return v.typ == TypeReference
}

// AsBool returns the boolean payload. Panics if not a boolean.
func (v Value) AsBool() bool {
	if v.typ != TypeBool {
		panic(fmt.Sprintf("Value.AsBool: expected boolean, got %s", v.typ))
	}
	return v.data.(bool)
}

// AsInt returns the integer payload. Panics if not an integer.
func (v Value) AsInt() int64 {
	if v.typ != TypeInt {
		panic(fmt.Sprintf("Value.AsInt: expected integer, got %s", v.typ))
	}
	return v.data.(int64)
}

// AsFloat returns the float payload. Panics if not a float.
func (v Value) AsFloat() float64 {
	if v.typ != TypeFloat {
		panic(fmt.Sprintf("Value.AsFloat: expected float, got %s", v.typ))
	}
	return v.data.(float64)
}

// AsString returns the string payload. Panics if not a string.
func (v Value) AsString() Bytes {
	if v.typ != TypeString {
		panic(fmt.Sprintf("Value.AsString: expected string, got %s", v.typ))
	}
	return v.data.(Bytes)
}

// AsArray returns the array payload. Panics if not an array.
func (v Value) AsArray() *Array {
	if v.typ != TypeArray {
		panic(fmt.Sprintf("Value.AsArray: expected array, got %s", v.typ))
	}
	return v.data.(*Array)
}

// AsObject returns the object payload. Panics if not an object.
func (v Value) AsObject() *Object {
	if v.typ != TypeObject {
		panic(fmt.Sprintf("Value.AsObject: expected object, got %s", v.typ))
	}
	return v.data.(*Object)
}

// AsCustomObject returns the custom object payload. Panics if not one.
func (v Value) AsCustomObject() *CustomObject {
	if v.typ != TypeCustomObject {
		panic(fmt.Sprintf("Value.AsCustomObject: expected custom object, got %s", v.typ))
	}
	return v.data.(*CustomObject)
}

// AsEnum returns the enum payload. Panics if not an enum.
func (v Value) AsEnum() *EnumCase {
	if v.typ != TypeEnum {
		panic(fmt.Sprintf("Value.AsEnum: expected enum, got %s", v.typ))
	}
	return v.data.(*EnumCase)
}

// AsReference returns the reference payload. Panics if not a reference.
func (v Value) AsReference() Reference {
	if v.typ != TypeReference {
		panic(fmt.Sprintf("Value.AsReference: expected reference, got %s", v.typ))
	}
	return v.data.(Reference)
}

// GoString implements fmt.GoStringer for debugging.
func (v Value) GoString() string {
	switch v.typ {
	case TypeNull:
		return "null"
	case TypeBool:
		if v.data.(bool) {
			return "true"
		}
		return "false"
	case TypeInt:
		return fmt.Sprintf("%d", v.data.(int64))
	case TypeFloat:
		return fmt.Sprintf("%g", v.data.(float64))
	case TypeString:
		return fmt.Sprintf("%q", v.data.(Bytes).Bytes())
	case TypeArray:
		return fmt.Sprintf("array[%d]", len(v.data.(*Array).Entries))
	case TypeObject:
		o := v.data.(*Object)
		return fmt.Sprintf("object(%s){%d properties}", o.Class.String(), len(o.Properties))
	case TypeCustomObject:
		c := v.data.(*CustomObject)
		return fmt.Sprintf("custom(%s){%d bytes}", c.Class.String(), c.Data.Len())
	case TypeEnum:
		e := v.data.(*EnumCase)
		return fmt.Sprintf("enum(%s:%s)", e.Class.String(), e.Case.String())
	case TypeReference:
		r := v.data.(Reference)
		return fmt.Sprintf("%s:%d", r.Kind, r.Index)
	default:
		return fmt.Sprintf("%s(%v)", v.typ, v.data)
	}
}

// Visibility of an object property, recovered from its mangled key.
type Visibility uint8

const (
	// Public properties arrive with a bare name.
	Public Visibility = iota
	// Protected properties arrive as "\x00*\x00name".
	Protected
	// Private properties arrive as "\x00Class\x00name".
	Private
)

func (v Visibility) String() string {
	switch v {
	case Protected:
		return "protected"
	case Private:
		return "private"
	default:
		return "public"
	}
}

// SplitPropertyName decodes the visibility mangling of an object property
// key. It returns the bare name, the visibility, and, for private
// properties, the declaring class. Keys without the NUL framing are public;
// malformed framing degrades to public with the key returned whole.
func SplitPropertyName(key []byte) (name []byte, vis Visibility, class []byte) {
	if len(key) == 0 || key[0] != 0 {
		return key, Public, nil
	}
	second := bytes.IndexByte(key[1:], 0)
	if second < 0 {
		return key, Public, nil
	}
	prefix := key[1 : 1+second]
	name = key[2+second:]
	if string(prefix) == "*" {
		return name, Protected, nil
	}
	return name, Private, prefix
}

// Equal reports deep structural equality of two values. References compare
// by kind and index; strings by content, ignoring ownership.
func Equal(a, b Value) bool {
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case TypeNull:
		return true
	case TypeBool:
		return a.data.(bool) == b.data.(bool)
	case TypeInt:
		return a.data.(int64) == b.data.(int64)
	case TypeFloat:
		fa, fb := a.data.(float64), b.data.(float64)
		return fa == fb || (fa != fa && fb != fb) // NaN == NaN for comparison purposes
	case TypeString:
		return bytes.Equal(a.AsString().Bytes(), b.AsString().Bytes())
	case TypeArray:
		return entriesEqual(a.AsArray().Entries, b.AsArray().Entries)
	case TypeObject:
		oa, ob := a.AsObject(), b.AsObject()
		return bytes.Equal(oa.Class.Bytes(), ob.Class.Bytes()) &&
			entriesEqual(oa.Properties, ob.Properties)
	case TypeCustomObject:
		ca, cb := a.AsCustomObject(), b.AsCustomObject()
		return bytes.Equal(ca.Class.Bytes(), cb.Class.Bytes()) &&
			bytes.Equal(ca.Data.Bytes(), cb.Data.Bytes())
	case TypeEnum:
		ea, eb := a.AsEnum(), b.AsEnum()
		return bytes.Equal(ea.Class.Bytes(), eb.Class.Bytes()) &&
			bytes.Equal(ea.Case.Bytes(), eb.Case.Bytes())
	case TypeReference:
		return a.data.(Reference) == b.data.(Reference)
	}
	return false
}

func entriesEqual(a, b []Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i].Key, b[i].Key) || !Equal(a[i].Value, b[i].Value) {
			return false
		}
	}
	return true
}

// keyString renders an array key for map-style consumers: integers as
// digits, strings lossily as UTF-8, other types via GoString.
func keyString(k Value) string {
	switch k.Type() {
	case TypeInt:
		return fmt.Sprintf("%d", k.AsInt())
	case TypeString:
		return strings.ToValidUTF8(k.AsString().String(), string(utf8.RuneError))
	default:
		return k.GoString()
	}
}
