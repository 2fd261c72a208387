package parse

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Text encodings reported by toUTF8.
const (
	EncodingUTF8        = "utf-8"
	EncodingUTF8BOM     = "utf-8-bom"
	EncodingUTF16LE     = "utf-16le"
	EncodingUTF16BE     = "utf-16be"
	EncodingWindows1252 = "windows-1252"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// toUTF8 converts a text export to UTF-8. A byte order mark selects the
// encoding; without one, valid UTF-8 is kept and anything else is read as
// Windows-1252, which is what spreadsheet "Save as CSV" produces on Windows.
// A UTF-8 mark followed by invalid UTF-8 is also read as Windows-1252.
func toUTF8(data []byte) ([]byte, string, error) {
	var dec *encoding.Decoder
	var name string
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		data = data[len(bomUTF8):]
		if utf8.Valid(data) {
			return data, EncodingUTF8BOM, nil
		}
		dec, name = charmap.Windows1252.NewDecoder(), EncodingWindows1252
	case bytes.HasPrefix(data, bomUTF16LE):
		dec, name = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder(), EncodingUTF16LE
	case bytes.HasPrefix(data, bomUTF16BE):
		dec, name = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder(), EncodingUTF16BE
	case utf8.Valid(data):
		return data, EncodingUTF8, nil
	default:
		dec, name = charmap.Windows1252.NewDecoder(), EncodingWindows1252
	}

	out, err := dec.Bytes(data)
	if err != nil {
		return nil, "", fmt.Errorf("decoding %s: %w", name, err)
	}
	return out, name, nil
}
