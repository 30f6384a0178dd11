package tabular

import (
	"bufio"
	"io"
	"os"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
)

// Encoding names a text encoding accepted for input files.
type Encoding string

// Supported encodings.
const (
	UTF8   Encoding = "utf-8"
	Latin1 Encoding = "latin-1"
)

// DetectEncoding reports UTF8 when r is entirely valid UTF-8 and Latin1
// otherwise.
func DetectEncoding(r io.Reader) (Encoding, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	buf := make([]byte, 64*1024)
	var carry []byte
	for {
		n, err := br.Read(buf)
		chunk := append(carry, buf[:n]...)
		carry = nil

		// Hold back a rune split across reads.
		if err == nil {
			cut := len(chunk)
			for i := 1; i <= utf8.UTFMax && i <= len(chunk); i++ {
				if utf8.RuneStart(chunk[len(chunk)-i]) {
					if !utf8.FullRune(chunk[len(chunk)-i:]) {
						cut = len(chunk) - i
					}
					break
				}
			}
			carry = append(carry, chunk[cut:]...)
			chunk = chunk[:cut]
		}

		if !utf8.Valid(chunk) {
			return Latin1, nil
		}
		if err == io.EOF {
			return UTF8, nil
		}
		if err != nil {
			return "", eris.Wrap(err, "encoding: scan input")
		}
	}
}

// Decode wraps r so reads yield UTF-8. A leading UTF-8 BOM is left for
// NewHeader to strip.
func Decode(r io.Reader, enc Encoding) io.Reader {
	if enc == Latin1 {
		return charmap.ISO8859_1.NewDecoder().Reader(r)
	}
	return r
}

type decodedFile struct {
	io.Reader
	f *os.File
}

func (d *decodedFile) Close() error { return d.f.Close() }

// OpenText opens path for reading as UTF-8, transcoding from Latin-1 when
// the file is not valid UTF-8.
func OpenText(path string) (io.ReadCloser, Encoding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", eris.Wrapf(err, "encoding: open %s", path)
	}
	enc, err := DetectEncoding(f)
	if err != nil {
		f.Close() //nolint:errcheck
		return nil, "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close() //nolint:errcheck
		return nil, "", eris.Wrapf(err, "encoding: rewind %s", path)
	}
	return &decodedFile{Reader: Decode(f, enc), f: f}, enc, nil
}
