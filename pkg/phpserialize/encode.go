// Package phpserialize encodes values into the format produced by PHP's serialize().
//
// Only the shapes stored by WordPress options and user meta are supported:
// indexed arrays of strings and string-keyed arrays of strings.
package phpserialize

import (
	"strconv"
	"strings"
)

// Pair is a single key-value entry of an associative array.
// The order of pairs is preserved in the output.
type Pair struct {
	Key   string
	Value string
}

// EncodeList encodes values as an indexed PHP array:
//
//	a:<count>:{i:0;s:<len>:"<value>";...}
//
// Lengths are byte lengths of the UTF-8 encoding, that is what PHP's unserialize() expects.
func EncodeList(values []string) string {
	var b strings.Builder
	writeArrayHeader(&b, len(values))

	for i, v := range values {
		writeInt(&b, i)
		writeString(&b, v)
	}

	b.WriteByte('}')

	return b.String()
}

// EncodeStringMap encodes pairs as an associative PHP array with string keys, e.g.
// a:1:{s:13:"administrator";s:1:"1";}
func EncodeStringMap(pairs []Pair) string {
	var b strings.Builder
	writeArrayHeader(&b, len(pairs))

	for _, p := range pairs {
		writeString(&b, p.Key)
		writeString(&b, p.Value)
	}

	b.WriteByte('}')

	return b.String()
}

func writeArrayHeader(b *strings.Builder, count int) {
	b.WriteString("a:")
	b.WriteString(strconv.Itoa(count))
	b.WriteString(":{")
}

func writeInt(b *strings.Builder, v int) {
	b.WriteString("i:")
	b.WriteString(strconv.Itoa(v))
	b.WriteByte(';')
}

func writeString(b *strings.Builder, v string) {
	b.WriteString("s:")
	b.WriteString(strconv.Itoa(len(v)))
	b.WriteString(`:"`)
	b.WriteString(v)
	b.WriteString(`";`)
}
