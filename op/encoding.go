package op

import (
	"io"
	"path"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// utf8Reader decodes r to UTF-8. A UTF-8 or UTF-16 byte order mark selects
// the source encoding and is dropped; without one the input is taken as
// UTF-8. Bytes that are not valid UTF-8 fail the read with
// encoding.ErrInvalidUTF8.
func utf8Reader(r io.Reader) io.Reader {
	return transform.NewReader(r, transform.Chain(
		unicode.BOMOverride(transform.Nop),
		encoding.UTF8Validator,
	))
}

// IsCSV reports whether filename has a .csv extension, ignoring case.
func IsCSV(filename string) bool {
	return strings.EqualFold(path.Ext(filename), ".csv")
}
