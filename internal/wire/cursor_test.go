package wire

import (
	"errors"
	"math"
	"testing"
)

func TestReadByteAndPeek(t *testing.T) {
	c := NewCursor([]byte("ab"))

	b, err := c.Peek()
	if err != nil || b != 'a' {
		t.Fatalf("Peek = %q, %v", b, err)
	}
	if c.Pos() != 0 {
		t.Fatalf("Peek advanced position to %d", c.Pos())
	}

	b, err = c.ReadByte()
	if err != nil || b != 'a' {
		t.Fatalf("ReadByte = %q, %v", b, err)
	}
	b, err = c.ReadByte()
	if err != nil || b != 'b' {
		t.Fatalf("ReadByte = %q, %v", b, err)
	}

	if _, err := c.ReadByte(); !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("ReadByte at EOF = %v, want ErrUnexpectedEOF", err)
	}
	if !c.EOF() {
		t.Fatal("EOF() = false after consuming all input")
	}
}

func TestExpect(t *testing.T) {
	c := NewCursor([]byte(":x"))
	if err := c.Expect(':'); err != nil {
		t.Fatalf("Expect(':') = %v", err)
	}
	if err := c.Expect(':'); !errors.Is(err, ErrByteMismatch) {
		t.Fatalf("Expect(':') on 'x' = %v, want ErrByteMismatch", err)
	}
	if c.Pos() != 1 {
		t.Fatalf("failed Expect advanced position to %d", c.Pos())
	}
}

func TestSlice(t *testing.T) {
	c := NewCursor([]byte("hello"))
	s, err := c.Slice(3)
	if err != nil || string(s) != "hel" {
		t.Fatalf("Slice(3) = %q, %v", s, err)
	}
	if _, err := c.Slice(3); !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("Slice past end = %v, want ErrUnexpectedEOF", err)
	}
	// The slice aliases the input, no copy.
	input := []byte("abc")
	c = NewCursor(input)
	s, _ = c.Slice(3)
	input[0] = 'z'
	if s[0] != 'z' {
		t.Fatal("Slice returned a copy, want an alias")
	}
}

func TestReadUint(t *testing.T) {
	tests := []struct {
		input   string
		want    uint64
		rest    int // expected remaining bytes
		wantErr error
	}{
		{"0;", 0, 1, nil},
		{"42;", 42, 1, nil},
		{"007", 7, 0, nil},
		{"18446744073709551615", math.MaxUint64, 0, nil},
		{"18446744073709551616", 0, 0, ErrIntegerOverflow},
		{"abc", 0, 0, ErrNoDigits},
		{"", 0, 0, ErrUnexpectedEOF},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c := NewCursor([]byte(tt.input))
			got, err := c.ReadUint()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ReadUint(%q) err = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("ReadUint(%q) = %d, %v; want %d", tt.input, got, err, tt.want)
			}
			if c.Remaining() != tt.rest {
				t.Fatalf("ReadUint(%q) left %d bytes, want %d", tt.input, c.Remaining(), tt.rest)
			}
		})
	}
}

func TestReadInt(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr error
	}{
		{"0", 0, nil},
		{"42", 42, nil},
		{"-123", -123, nil},
		{"9223372036854775807", math.MaxInt64, nil},
		{"-9223372036854775808", math.MinInt64, nil},
		{"9223372036854775808", 0, ErrIntegerOverflow},
		{"-9223372036854775809", 0, ErrIntegerOverflow},
		{"-", 0, ErrUnexpectedEOF},
		{"-x", 0, ErrNoDigits},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c := NewCursor([]byte(tt.input))
			got, err := c.ReadInt()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ReadInt(%q) err = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("ReadInt(%q) = %d, %v; want %d", tt.input, got, err, tt.want)
			}
		})
	}
}

func TestReadFloat(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		rest  int
	}{
		{"0;", 0, 1},
		{"3.14;", 3.14, 1},
		{"-2.5;", -2.5, 1},
		{"1e3;", 1000, 1},
		{"1.5E+10;", 1.5e10, 1},
		{"2e-2;", 0.02, 1},
		{".5;", 0.5, 1},
		{"+7;", 7, 1},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c := NewCursor([]byte(tt.input))
			got, err := c.ReadFloat()
			if err != nil || got != tt.want {
				t.Fatalf("ReadFloat(%q) = %g, %v; want %g", tt.input, got, err, tt.want)
			}
			if c.Remaining() != tt.rest {
				t.Fatalf("ReadFloat(%q) left %d bytes, want %d", tt.input, c.Remaining(), tt.rest)
			}
		})
	}
}

func TestReadFloatSpecialTokens(t *testing.T) {
	c := NewCursor([]byte("NAN;"))
	f, err := c.ReadFloat()
	if err != nil || !math.IsNaN(f) {
		t.Fatalf("ReadFloat(NAN) = %g, %v", f, err)
	}

	c = NewCursor([]byte("INF;"))
	f, err = c.ReadFloat()
	if err != nil || !math.IsInf(f, 1) {
		t.Fatalf("ReadFloat(INF) = %g, %v", f, err)
	}

	c = NewCursor([]byte("-INF;"))
	f, err = c.ReadFloat()
	if err != nil || !math.IsInf(f, -1) {
		t.Fatalf("ReadFloat(-INF) = %g, %v", f, err)
	}
}

func TestReadFloatMalformed(t *testing.T) {
	for _, input := range []string{";", "-;", "e5;", ".;"} {
		c := NewCursor([]byte(input))
		if _, err := c.ReadFloat(); !errors.Is(err, ErrBadFloat) {
			t.Errorf("ReadFloat(%q) = %v, want ErrBadFloat", input, err)
		}
	}
	c := NewCursor(nil)
	if _, err := c.ReadFloat(); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("ReadFloat on empty input = %v, want ErrUnexpectedEOF", err)
	}
}

func TestReadFloatBareExponent(t *testing.T) {
	// "1e" with no exponent digits: the literal is just "1", 'e' stays.
	c := NewCursor([]byte("1e"))
	f, err := c.ReadFloat()
	if err != nil || f != 1 {
		t.Fatalf("ReadFloat(1e) = %g, %v", f, err)
	}
	if c.Remaining() != 1 {
		t.Fatalf("ReadFloat(1e) consumed the bare exponent marker")
	}
}

func TestSeekAndRest(t *testing.T) {
	c := NewCursor([]byte("abcdef"))
	c.SeekTo(4)
	if string(c.Rest()) != "ef" {
		t.Fatalf("Rest after SeekTo(4) = %q", c.Rest())
	}
	c.SeekTo(99) // out of range, ignored
	if c.Pos() != 4 {
		t.Fatalf("SeekTo out of range moved position to %d", c.Pos())
	}
}
