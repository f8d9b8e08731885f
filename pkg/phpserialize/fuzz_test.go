package phpserialize

import (
	"testing"

	"github.com/tidwall/gjson"
)

// FuzzParse tests that the parser never panics and that everything it
// accepts projects to valid JSON.
func FuzzParse(f *testing.F) {
	seeds := []string{
		// Valid values of every type
		"N;",
		"b:0;",
		"b:1;",
		"i:42;",
		"i:-9223372036854775808;",
		"d:3.14;",
		"d:NAN;",
		"d:-INF;",
		`s:5:"hello";`,
		`S:2:"hi";`,
		`a:0:{}`,
		`a:2:{s:4:"name";s:5:"Alice";s:3:"age";i:30;}`,
		`O:8:"stdClass":1:{s:1:"a";N;}`,
		"O:4:\"Test\":1:{s:10:\"\x00Test\x00priv\";i:1;}",
		`C:7:"MyClass":5:{hello}`,
		`E:13:"Status:Active";`,
		`a:1:{i:0;R:1;}`,
		`"a:1:{s:3:""key"";s:5:""value"";}"`,
		// Length mismatch (recoverable)
		"s:4:\"\xed\x95\x9c\xea\xb8\x80\";",
		// Malformed
		"",
		"X:1;",
		"i:abc;",
		`s:10:"hi`,
		"a:2:{i:0;i:1;}",
		"a:99999999999999999999:{}",
		"R:0;",
		"d:;",
		`E:3:"abc";`,
		"b:",
	}
	for _, seed := range seeds {
		f.Add([]byte(seed))
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		d := NewDeserializer(data, WithMaxDepth(64))
		v, err := d.Deserialize()
		if err != nil {
			return // malformed input is expected to fail
		}

		js, err := ToJSON(v, ErrorsReplace)
		if err != nil {
			t.Fatalf("accepted value failed JSON projection: %v", err)
		}
		if !gjson.Valid(js) {
			t.Fatalf("projection produced invalid JSON: %s", js)
		}

		_ = ToGo(v)

		if resolved, err := Resolve(v); err == nil {
			_ = ToGo(resolved)
		}
	})
}

// FuzzPreprocess tests detection and rewrite on arbitrary bytes.
func FuzzPreprocess(f *testing.F) {
	f.Add([]byte(`"a:1:{s:3:""key"";N;}"`))
	f.Add([]byte(`"N;"`))
	f.Add([]byte("i:42;"))
	f.Add([]byte(`""`))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		out := Preprocess(data)
		if !looksDBEscaped(data) {
			if string(out) != string(data) {
				t.Fatal("non-escaped input must pass through unchanged")
			}
			return
		}
		if len(out) > len(data)-2 {
			t.Fatalf("rewrite grew: %d bytes from %d", len(out), len(data))
		}
	})
}
