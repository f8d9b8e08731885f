package phpserialize

import (
	"testing"
)

func TestSplitPropertyName(t *testing.T) {
	tests := []struct {
		key   string
		name  string
		vis   Visibility
		class string
	}{
		{"name", "name", Public, ""},
		{"", "", Public, ""},
		{"\x00*\x00secret", "secret", Protected, ""},
		{"\x00Account\x00balance", "balance", Private, "Account"},
		{"\x00broken", "\x00broken", Public, ""}, // missing second NUL
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			name, vis, class := SplitPropertyName([]byte(tt.key))
			if string(name) != tt.name || vis != tt.vis || string(class) != tt.class {
				t.Fatalf("SplitPropertyName(%q) = %q, %v, %q; want %q, %v, %q",
					tt.key, name, vis, class, tt.name, tt.vis, tt.class)
			}
		})
	}
}

func TestBytesOwnership(t *testing.T) {
	backing := []byte("hello")
	b := Borrowed(backing)
	if b.Owned() {
		t.Fatal("Borrowed bytes report owned")
	}

	o := b.ToOwned()
	if !o.Owned() {
		t.Fatal("ToOwned result reports borrowed")
	}
	backing[0] = 'z'
	if o.String() != "hello" {
		t.Fatalf("owned copy changed with the backing buffer: %q", o.String())
	}
	if b.String() != "zello" {
		t.Fatalf("borrowed bytes should alias the buffer: %q", b.String())
	}
	if o.ToOwned().Bytes()[0] != o.Bytes()[0] {
		t.Fatal("ToOwned on owned bytes should be a no-op")
	}
}

func TestBorrowIntegrity(t *testing.T) {
	// Every borrowed slice of a plain parse lies within the input buffer.
	input := []byte(`a:2:{s:4:"name";s:5:"Alice";s:3:"age";i:30;}`)
	v := MustParse(input)

	inBuffer := func(s []byte) bool {
		if len(s) == 0 {
			return true
		}
		for i := range input {
			if &input[i] == &s[0] {
				return i+len(s) <= len(input)
			}
		}
		return false
	}
	for _, e := range v.AsArray().Entries {
		if e.Key.IsString() && !inBuffer(e.Key.AsString().Bytes()) {
			t.Fatalf("key %q does not alias the input", e.Key.AsString().String())
		}
		if e.Value.IsString() && !inBuffer(e.Value.AsString().Bytes()) {
			t.Fatalf("value %q does not alias the input", e.Value.AsString().String())
		}
	}
}

func TestValueAccessorPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("AsInt on a string should panic")
		}
	}()
	String(Owned([]byte("x"))).AsInt()
}

func TestEqual(t *testing.T) {
	if !Equal(MustParse([]byte("i:42;")), MustParse([]byte("i:42;"))) {
		t.Fatal("identical ints differ")
	}
	if Equal(MustParse([]byte("i:42;")), MustParse([]byte("i:43;"))) {
		t.Fatal("different ints equal")
	}
	if Equal(MustParse([]byte("i:42;")), MustParse([]byte("d:42;"))) {
		t.Fatal("int equals float")
	}
	if !Equal(MustParse([]byte("d:NAN;")), MustParse([]byte("d:NAN;"))) {
		t.Fatal("NaN should compare equal to NaN here")
	}
	a := `a:1:{s:1:"k";a:1:{i:0;b:1;}}`
	if !Equal(MustParse([]byte(a)), MustParse([]byte(a))) {
		t.Fatal("identical nested arrays differ")
	}
}

func TestTypeString(t *testing.T) {
	if TypeNull.String() != "null" || TypeCustomObject.String() != "custom object" {
		t.Fatal("unexpected type names")
	}
	if Type(200).String() != "Type(200)" {
		t.Fatalf("unknown type renders %q", Type(200).String())
	}
}
