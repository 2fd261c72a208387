// Package parse decodes HR export files into records.
package parse

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Formats understood by the parser.
const (
	FormatCSV  = "csv"
	FormatTSV  = "tsv"
	FormatXLSX = "xlsx"
)

// Compression suffixes stripped before format detection.
const (
	compressionNone = ""
	compressionGZ   = "gz"
	compressionBZ2  = "bz2"
	compressionXZ   = "xz"
	compressionZSTD = "zst"
)

var compressionExts = map[string]string{
	".gz":   compressionGZ,
	".gzip": compressionGZ,
	".bz2":  compressionBZ2,
	".xz":   compressionXZ,
	".zst":  compressionZSTD,
	".zstd": compressionZSTD,
}

// Detect returns the format and compression of filename. A non-empty
// override wins over the extension for the format; compression is always
// taken from the extension.
func Detect(filename, override string) (format, compression string, err error) {
	name := strings.ToLower(path.Base(filename))
	ext := path.Ext(name)
	if c, ok := compressionExts[ext]; ok {
		compression = c
		name = strings.TrimSuffix(name, ext)
		ext = path.Ext(name)
	}

	if override != "" {
		format = strings.ToLower(override)
	} else {
		switch ext {
		case ".csv", ".txt":
			format = FormatCSV
		case ".tsv", ".tab":
			format = FormatTSV
		case ".xlsx", ".xlsm":
			format = FormatXLSX
		default:
			return "", "", fmt.Errorf("cannot detect format of %s", filename)
		}
	}

	switch format {
	case FormatCSV, FormatTSV, FormatXLSX:
		return format, compression, nil
	}
	return "", "", fmt.Errorf("unsupported format %q", format)
}

// decompress inflates data according to compression.
func decompress(data []byte, compression string) ([]byte, error) {
	var r io.Reader
	switch compression {
	case compressionNone:
		return data, nil
	case compressionGZ:
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	case compressionBZ2:
		r = bzip2.NewReader(bytes.NewReader(data))
	case compressionXZ:
		xr, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("opening xz stream: %w", err)
		}
		r = xr
	case compressionZSTD:
		dec, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("opening zstd stream: %w", err)
		}
		defer dec.Close()
		r = dec
	default:
		return nil, fmt.Errorf("unknown compression %q", compression)
	}

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", compression, err)
	}
	return out, nil
}
