package phpserialize

import (
	"errors"
	"math"

	"github.com/acolita/phpwire/internal/wire"
)

// DefaultMaxDepth is the default ceiling on value nesting.
const DefaultMaxDepth = 512

// DefaultMaxAllocation caps the bytes the parser will allocate for owned
// buffers and reference table accounting (100 MiB). This prevents memory
// exhaustion from malicious input.
const DefaultMaxAllocation = 100 << 20

// refSlotCost is the accounting charge per reference table slot.
const refSlotCost = 16

// ErrorsPolicy selects how invalid UTF-8 in strings is surfaced when
// projecting to JSON. ToGo does not take a policy.
type ErrorsPolicy uint8

const (
	// ErrorsReplace substitutes U+FFFD for invalid sequences.
	ErrorsReplace ErrorsPolicy = iota
	// ErrorsStrict fails on invalid sequences.
	ErrorsStrict
	// ErrorsBytes surfaces raw bytes (base64 in JSON output).
	ErrorsBytes
)

// Diagnostic records a non-fatal string length recovery.
type Diagnostic struct {
	// Pos is the offset of the string's first content byte.
	Pos int
	// Declared is the producer's claimed byte length.
	Declared int
	// Actual is the recovered byte length.
	Actual int
}

// Deserializer decodes one PHP serialized value from a byte buffer.
type Deserializer struct {
	cur           *wire.Cursor
	maxDepth      int
	maxAllocation int
	autoUnescape  bool
	strict        bool
	errorsPolicy  ErrorsPolicy

	depth     int
	slots     int
	allocated int
	rewritten bool // input was replaced by the DB-escape preprocessor
	diags     []Diagnostic
}

// Option configures the deserializer.
type Option func(*Deserializer)

// WithMaxDepth sets the maximum nesting depth (default 512).
func WithMaxDepth(depth int) Option {
	return func(d *Deserializer) {
		d.maxDepth = depth
	}
}

// WithAutoUnescape controls the DB-escape preprocessor (default on).
func WithAutoUnescape(on bool) Option {
	return func(d *Deserializer) {
		d.autoUnescape = on
	}
}

// WithStrict disables string length recovery: a declared length that does
// not line up with the `";` terminator fails with ErrLengthMismatch
// instead of being corrected.
func WithStrict(on bool) Option {
	return func(d *Deserializer) {
		d.strict = on
	}
}

// WithErrors sets the UTF-8 policy that ParseToJSON applies when it
// projects the result (default ErrorsReplace). Deserialize itself does not
// consult it.
func WithErrors(p ErrorsPolicy) Option {
	return func(d *Deserializer) {
		d.errorsPolicy = p
	}
}

// WithMaxAllocation bounds the bytes the parser allocates for owned
// buffers plus reference table entries (default 100 MiB).
func WithMaxAllocation(n int) Option {
	return func(d *Deserializer) {
		d.maxAllocation = n
	}
}

// NewDeserializer creates a deserializer for the given data. The data is
// borrowed, not copied: string values in the result alias it unless the
// preprocessor rewrote the buffer.
func NewDeserializer(data []byte, opts ...Option) *Deserializer {
	d := &Deserializer{
		cur:           wire.NewCursor(data),
		maxDepth:      DefaultMaxDepth,
		maxAllocation: DefaultMaxAllocation,
		autoUnescape:  true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deserialize decodes the single top-level value. Trailing bytes after
// its terminator are accepted silently; use Rest to inspect them. On
// error no partial tree is returned.
func (d *Deserializer) Deserialize() (Value, error) {
	if d.autoUnescape {
		data, ok := preprocess(d.cur.Data())
		if ok {
			if err := d.charge(len(data)); err != nil {
				return Value{}, err
			}
			d.cur = wire.NewCursor(data)
			d.rewritten = true
		}
	}
	return d.readValue()
}

// Rest returns the bytes left after the decoded value, from the
// (post-preprocess) buffer. Valid after Deserialize.
func (d *Deserializer) Rest() []byte {
	return d.cur.Rest()
}

// Slots returns how many reference table slots were assigned.
func (d *Deserializer) Slots() int {
	return d.slots
}

// Diagnostics returns the string length recoveries performed, in input
// order. Empty in strict mode.
func (d *Deserializer) Diagnostics() []Diagnostic {
	return d.diags
}

// bytesAt wraps a slice of the live buffer, tagged owned when the buffer
// itself is a preprocessor rewrite owned by the result.
func (d *Deserializer) bytesAt(b []byte) Bytes {
	if d.rewritten {
		return Owned(b)
	}
	return Borrowed(b)
}

// charge accounts n bytes against the allocation cap.
func (d *Deserializer) charge(n int) error {
	d.allocated += n
	if d.allocated > d.maxAllocation {
		return parseErr(ErrAllocationLimitExceeded, d.cur.Pos()).
			ctx("%d bytes requested, limit %d", d.allocated, d.maxAllocation)
	}
	return nil
}

// slot assigns one reference table slot. Called on entry into every
// reference-eligible value, before its children are parsed, so a
// back-reference inside a container may point at the container itself.
func (d *Deserializer) slot() error {
	d.slots++
	return d.charge(refSlotCost)
}

// readValue dispatches on the type tag at the cursor.
func (d *Deserializer) readValue() (Value, error) {
	d.depth++
	if d.depth > d.maxDepth {
		return Value{}, parseErr(ErrMaxDepthExceeded, d.cur.Pos()).
			ctx("limit %d", d.maxDepth)
	}
	defer func() { d.depth-- }()

	tag, err := d.cur.Peek()
	if err != nil {
		return Value{}, parseErr(ErrUnexpectedEof, d.cur.Pos())
	}

	switch tag {
	case tagNull:
		if err := d.slot(); err != nil {
			return Value{}, err
		}
		return d.readNull()
	case tagBool:
		if err := d.slot(); err != nil {
			return Value{}, err
		}
		return d.readBool()
	case tagInt:
		if err := d.slot(); err != nil {
			return Value{}, err
		}
		return d.readInt()
	case tagFloat:
		if err := d.slot(); err != nil {
			return Value{}, err
		}
		return d.readFloat()
	case tagString, tagEscapedString:
		if err := d.slot(); err != nil {
			return Value{}, err
		}
		return d.readString(tag)
	case tagArray:
		if err := d.slot(); err != nil {
			return Value{}, err
		}
		return d.readArray()
	case tagObject:
		if err := d.slot(); err != nil {
			return Value{}, err
		}
		return d.readObject()
	case tagCustomObject:
		if err := d.slot(); err != nil {
			return Value{}, err
		}
		return d.readCustomObject()
	case tagEnum:
		if err := d.slot(); err != nil {
			return Value{}, err
		}
		return d.readEnum()
	case tagValueRef, tagObjectRef:
		// References do not consume a slot.
		return d.readReference()
	default:
		return Value{}, parseErr(ErrInvalidType, d.cur.Pos()).
			ctx("tag %q", tag).
			withPreview(d.cur.Data(), d.cur.Pos())
	}
}

// expect consumes one byte, failing with the given kind when it is not b.
func (d *Deserializer) expect(b byte, kind error) error {
	pos := d.cur.Pos()
	err := d.cur.Expect(b)
	if err == nil {
		return nil
	}
	if errors.Is(err, wire.ErrUnexpectedEOF) {
		return parseErr(ErrUnexpectedEof, pos).ctx("expected %q", b)
	}
	found, _ := d.cur.Peek()
	return parseErr(kind, pos).
		ctx("expected %q, found %q", b, found).
		withPreview(d.cur.Data(), pos)
}

// readLength scans the unsigned decimal used for string lengths and
// container counts.
func (d *Deserializer) readLength() (int, error) {
	pos := d.cur.Pos()
	n, err := d.cur.ReadUint()
	if err != nil {
		if errors.Is(err, wire.ErrUnexpectedEOF) {
			return 0, parseErr(ErrUnexpectedEof, pos)
		}
		return 0, parseErr(ErrInvalidLength, pos)
	}
	if n > math.MaxInt {
		return 0, parseErr(ErrInvalidLength, pos).ctx("length %d too large", n)
	}
	return int(n), nil
}

// readNull parses `N;`.
func (d *Deserializer) readNull() (Value, error) {
	if err := d.expect(tagNull, ErrUnexpectedByte); err != nil {
		return Value{}, err
	}
	if err := d.expect(';', ErrMissingSeparator); err != nil {
		return Value{}, err
	}
	return Null(), nil
}

// readBool parses `b:0;` or `b:1;`.
func (d *Deserializer) readBool() (Value, error) {
	if err := d.expect(tagBool, ErrUnexpectedByte); err != nil {
		return Value{}, err
	}
	if err := d.expect(':', ErrMissingSeparator); err != nil {
		return Value{}, err
	}
	pos := d.cur.Pos()
	b, err := d.cur.ReadByte()
	if err != nil {
		return Value{}, parseErr(ErrUnexpectedEof, pos)
	}
	if b != '0' && b != '1' {
		return Value{}, parseErr(ErrUnexpectedByte, pos).
			ctx("boolean must be 0 or 1, found %q", b)
	}
	if err := d.expect(';', ErrMissingSeparator); err != nil {
		return Value{}, err
	}
	return Bool(b == '1'), nil
}

// readInt parses `i:<signed>;`. Magnitudes beyond the signed 64-bit range
// fail with ErrInvalidNumber.
func (d *Deserializer) readInt() (Value, error) {
	if err := d.expect(tagInt, ErrUnexpectedByte); err != nil {
		return Value{}, err
	}
	if err := d.expect(':', ErrMissingSeparator); err != nil {
		return Value{}, err
	}
	pos := d.cur.Pos()
	n, err := d.cur.ReadInt()
	if err != nil {
		if errors.Is(err, wire.ErrUnexpectedEOF) {
			return Value{}, parseErr(ErrUnexpectedEof, pos)
		}
		return Value{}, parseErr(ErrInvalidNumber, pos)
	}
	if err := d.expect(';', ErrMissingSeparator); err != nil {
		return Value{}, err
	}
	return Int(n), nil
}

// readFloat parses `d:<float>;` including the NAN, INF and -INF tokens.
func (d *Deserializer) readFloat() (Value, error) {
	if err := d.expect(tagFloat, ErrUnexpectedByte); err != nil {
		return Value{}, err
	}
	if err := d.expect(':', ErrMissingSeparator); err != nil {
		return Value{}, err
	}
	pos := d.cur.Pos()
	f, err := d.cur.ReadFloat()
	if err != nil {
		if errors.Is(err, wire.ErrUnexpectedEOF) {
			return Value{}, parseErr(ErrUnexpectedEof, pos)
		}
		return Value{}, parseErr(ErrInvalidFloat, pos)
	}
	if err := d.expect(';', ErrMissingSeparator); err != nil {
		return Value{}, err
	}
	return Float(f), nil
}

// readString parses `s:<len>:"<bytes>";` (and the identical `S` form).
//
// The declared length is tried first: when the two bytes after it are
// exactly `";`, the string is the borrowed slice of that length. When they
// are not and strict mode is off, the parser falls back to scanning for
// the earliest `";` whose successor keeps the grammar intact, adopts the
// distance as the true length, and records a Diagnostic. Strict mode
// fails with ErrLengthMismatch at the length token instead.
func (d *Deserializer) readString(tag byte) (Value, error) {
	if err := d.expect(tag, ErrUnexpectedByte); err != nil {
		return Value{}, err
	}
	if err := d.expect(':', ErrMissingSeparator); err != nil {
		return Value{}, err
	}
	lenPos := d.cur.Pos()
	declared, err := d.readLength()
	if err != nil {
		return Value{}, err
	}
	if err := d.expect(':', ErrMissingSeparator); err != nil {
		return Value{}, err
	}
	if err := d.expect('"', ErrMissingSeparator); err != nil {
		return Value{}, err
	}

	data := d.cur.Data()
	start := d.cur.Pos()

	if end := start + declared; declared <= len(data)-start-2 && data[end] == '"' && data[end+1] == ';' {
		content, _ := d.cur.Slice(declared)
		_ = d.cur.Skip(2)
		return String(d.bytesAt(content)), nil
	}

	if d.strict {
		return Value{}, parseErr(ErrLengthMismatch, lenPos).
			ctx("declared %d bytes, terminator not found there", declared)
	}
	return d.readStringFallback(start, declared)
}

// readStringFallback scans forward from the content start for a `";` that
// a value or container close could legally follow.
func (d *Deserializer) readStringFallback(start, declared int) (Value, error) {
	data := d.cur.Data()
	for i := start; i+1 < len(data); i++ {
		if data[i] != '"' || data[i+1] != ';' {
			continue
		}
		if i+2 < len(data) {
			next := data[i+2]
			if !isTypeTag(next) && next != '}' {
				continue
			}
		}
		actual := i - start
		if actual != declared {
			d.diags = append(d.diags, Diagnostic{Pos: start, Declared: declared, Actual: actual})
		}
		content := data[start:i]
		d.cur.SeekTo(i + 2)
		return String(d.bytesAt(content)), nil
	}
	return Value{}, parseErr(ErrUnterminatedString, start).
		ctx("declared %d bytes", declared)
}

// readArray parses `a:<count>:{<key><value>...}`. Exactly count pairs are
// read; key types are not validated and duplicates are preserved in
// occurrence order.
func (d *Deserializer) readArray() (Value, error) {
	if err := d.expect(tagArray, ErrUnexpectedByte); err != nil {
		return Value{}, err
	}
	if err := d.expect(':', ErrMissingSeparator); err != nil {
		return Value{}, err
	}
	count, err := d.readLength()
	if err != nil {
		return Value{}, err
	}
	if err := d.expect(':', ErrMissingSeparator); err != nil {
		return Value{}, err
	}
	if err := d.expect('{', ErrMissingSeparator); err != nil {
		return Value{}, err
	}

	entries := make([]Entry, 0, capHint(count))
	for i := 0; i < count; i++ {
		key, err := d.readValue()
		if err != nil {
			return Value{}, err
		}
		val, err := d.readValue()
		if err != nil {
			return Value{}, err
		}
		entries = append(entries, Entry{Key: key, Value: val})
	}
	if err := d.expect('}', ErrMissingSeparator); err != nil {
		return Value{}, err
	}
	return NewArray(entries), nil
}

// readClassName parses the `<len>:"<name>"` fragment shared by O, C and E.
// The name is an exact slice; length fallback never applies here.
func (d *Deserializer) readClassName() (Bytes, error) {
	nameLen, err := d.readLength()
	if err != nil {
		return Bytes{}, err
	}
	if err := d.expect(':', ErrMissingSeparator); err != nil {
		return Bytes{}, err
	}
	if err := d.expect('"', ErrMissingSeparator); err != nil {
		return Bytes{}, err
	}
	pos := d.cur.Pos()
	name, err := d.cur.Slice(nameLen)
	if err != nil {
		return Bytes{}, parseErr(ErrUnexpectedEof, pos).ctx("class name of %d bytes", nameLen)
	}
	if err := d.expect('"', ErrMissingSeparator); err != nil {
		return Bytes{}, err
	}
	return d.bytesAt(name), nil
}

// readObject parses `O:<len>:"<class>":<count>:{<key><value>...}`.
// Property keys are stored verbatim, including visibility mangling.
func (d *Deserializer) readObject() (Value, error) {
	if err := d.expect(tagObject, ErrUnexpectedByte); err != nil {
		return Value{}, err
	}
	if err := d.expect(':', ErrMissingSeparator); err != nil {
		return Value{}, err
	}
	class, err := d.readClassName()
	if err != nil {
		return Value{}, err
	}
	if err := d.expect(':', ErrMissingSeparator); err != nil {
		return Value{}, err
	}
	count, err := d.readLength()
	if err != nil {
		return Value{}, err
	}
	if err := d.expect(':', ErrMissingSeparator); err != nil {
		return Value{}, err
	}
	if err := d.expect('{', ErrMissingSeparator); err != nil {
		return Value{}, err
	}

	obj := &Object{Class: class, Properties: make([]Entry, 0, capHint(count))}
	for i := 0; i < count; i++ {
		key, err := d.readValue()
		if err != nil {
			return Value{}, err
		}
		val, err := d.readValue()
		if err != nil {
			return Value{}, err
		}
		obj.Properties = append(obj.Properties, Entry{Key: key, Value: val})
	}
	if err := d.expect('}', ErrMissingSeparator); err != nil {
		return Value{}, err
	}
	return Value{typ: TypeObject, data: obj}, nil
}

// readCustomObject parses `C:<len>:"<class>":<bodylen>:{<bytes>}`. The
// body is opaque and its declared length is the only delimiter, so a
// mis-declared length is fatal; fallback never applies.
func (d *Deserializer) readCustomObject() (Value, error) {
	if err := d.expect(tagCustomObject, ErrUnexpectedByte); err != nil {
		return Value{}, err
	}
	if err := d.expect(':', ErrMissingSeparator); err != nil {
		return Value{}, err
	}
	class, err := d.readClassName()
	if err != nil {
		return Value{}, err
	}
	if err := d.expect(':', ErrMissingSeparator); err != nil {
		return Value{}, err
	}
	bodyLen, err := d.readLength()
	if err != nil {
		return Value{}, err
	}
	if err := d.expect(':', ErrMissingSeparator); err != nil {
		return Value{}, err
	}
	if err := d.expect('{', ErrMissingSeparator); err != nil {
		return Value{}, err
	}
	pos := d.cur.Pos()
	body, err := d.cur.Slice(bodyLen)
	if err != nil {
		return Value{}, parseErr(ErrUnexpectedEof, pos).ctx("custom body of %d bytes", bodyLen)
	}
	if err := d.expect('}', ErrMissingSeparator); err != nil {
		return Value{}, err
	}
	return Value{typ: TypeCustomObject, data: &CustomObject{
		Class: class,
		Data:  d.bytesAt(body),
	}}, nil
}

// readEnum parses `E:<len>:"<Class:Case>";` and splits on the first colon.
func (d *Deserializer) readEnum() (Value, error) {
	if err := d.expect(tagEnum, ErrUnexpectedByte); err != nil {
		return Value{}, err
	}
	if err := d.expect(':', ErrMissingSeparator); err != nil {
		return Value{}, err
	}
	pos := d.cur.Pos()
	combined, err := d.readClassName()
	if err != nil {
		return Value{}, err
	}
	if err := d.expect(';', ErrMissingSeparator); err != nil {
		return Value{}, err
	}

	raw := combined.Bytes()
	colon := -1
	for i, b := range raw {
		if b == ':' {
			colon = i
			break
		}
	}
	if colon < 0 {
		return Value{}, parseErr(ErrInvalidEnum, pos).
			ctx("missing ':' between class and case")
	}
	return Value{typ: TypeEnum, data: &EnumCase{
		Class: d.bytesAt(raw[:colon]),
		Case:  d.bytesAt(raw[colon+1:]),
	}}, nil
}

// readReference parses `R:<index>;` or `r:<index>;`. The index is 1-based
// and stored unresolved; only a zero index is rejected here. Bounds against
// the slot table are a consumer concern (see Resolve).
func (d *Deserializer) readReference() (Value, error) {
	tag, err := d.cur.ReadByte()
	if err != nil {
		return Value{}, parseErr(ErrUnexpectedEof, d.cur.Pos())
	}
	kind := RefValue
	if tag == tagObjectRef {
		kind = RefObject
	}
	if err := d.expect(':', ErrMissingSeparator); err != nil {
		return Value{}, err
	}
	pos := d.cur.Pos()
	idx, err := d.readLength()
	if err != nil {
		return Value{}, err
	}
	if idx == 0 {
		return Value{}, parseErr(ErrInvalidReference, pos).ctx("index must be >= 1")
	}
	if err := d.expect(';', ErrMissingSeparator); err != nil {
		return Value{}, err
	}
	return NewReference(kind, idx), nil
}

// capHint caps speculative slice pre-allocation so a hostile declared
// count cannot allocate ahead of the bytes that back it.
func capHint(count int) int {
	if count > 1024 {
		return 1024
	}
	return count
}
