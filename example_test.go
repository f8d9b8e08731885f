package phpwire_test

import (
	"fmt"
	"log"

	"github.com/acolita/phpwire/pkg/phpserialize"
)

func Example_parseArray() {
	data := []byte(`a:2:{s:4:"name";s:5:"Alice";s:3:"age";i:30;}`)

	val, err := phpserialize.Parse(data)
	if err != nil {
		log.Fatal(err)
	}

	for _, e := range val.AsArray().Entries {
		fmt.Printf("%s = %#v\n", e.Key.AsString().String(), e.Value)
	}
	// Output:
	// name = "Alice"
	// age = 30
}

func Example_parseToJSON() {
	data := []byte(`a:2:{s:4:"name";s:5:"Alice";s:3:"age";i:30;}`)

	js, err := phpserialize.ParseToJSON(data)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(js)
	// Output:
	// {"name":"Alice","age":30}
}

func Example_dbEscapedExport() {
	// Column value copied out of a database export: outer quotes, embedded
	// quotes doubled. The preprocessor handles it transparently.
	data := []byte(`"a:1:{s:3:""key"";s:5:""value"";}"`)

	js, err := phpserialize.ParseToJSON(data)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(js)
	// Output:
	// {"key":"value"}
}

func Example_lengthRecovery() {
	// Declared length 4 disagrees with the 6 real bytes (the producer
	// transcoded the data after serializing it). The default mode recovers
	// and records a diagnostic.
	data := []byte("s:4:\"\xed\x95\x9c\xea\xb8\x80\";")

	d := phpserialize.NewDeserializer(data)
	val, err := d.Deserialize()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(val.AsString().String())
	for _, diag := range d.Diagnostics() {
		fmt.Printf("declared %d, actual %d\n", diag.Declared, diag.Actual)
	}
	// Output:
	// 한글
	// declared 4, actual 6
}

func Example_resolveReferences() {
	// The second entry aliases the first string (slot 3).
	data := []byte(`a:2:{i:0;s:2:"hi";i:1;R:3;}`)

	val, err := phpserialize.Parse(data)
	if err != nil {
		log.Fatal(err)
	}
	resolved, err := phpserialize.Resolve(val)
	if err != nil {
		log.Fatal(err)
	}

	entries := resolved.AsArray().Entries
	fmt.Println(entries[1].Value.AsString().String())
	// Output:
	// hi
}
