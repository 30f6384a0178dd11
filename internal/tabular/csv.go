// Package tabular reads the local CSV, ZIP, and XLSX files fed to the CMS
// and taxonomy importers.
package tabular

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune            // default ','
	HasHeader  bool            // if true, first row is not sent on the row channel
	HeaderCh   chan<- []string // optional: receives the header row
	LazyQuotes bool
	TrimSpace  bool
}

// StreamCSV reads CSV rows from r and sends them to a channel.
// Caller must consume the returned row channel. Errors are sent on the error channel.
// Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1

		first := true
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			if first && opts.HasHeader {
				first = false
				if opts.HeaderCh != nil {
					select {
					case opts.HeaderCh <- record:
					case <-ctx.Done():
						errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled sending header")
						return
					}
				}
				continue
			}
			first = false

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// Header maps column names to positions. Names are trimmed and a leading
// UTF-8 byte-order mark is dropped.
type Header map[string]int

// NewHeader indexes cols. Each alias is registered under its canonical
// name when the file does not already carry the canonical column.
func NewHeader(cols []string, aliases map[string]string) Header {
	h := make(Header, len(cols))
	for i, c := range cols {
		c = strings.TrimSpace(strings.TrimPrefix(c, "\ufeff"))
		if _, dup := h[c]; !dup {
			h[c] = i
		}
	}
	for alias, canonical := range aliases {
		if _, ok := h[canonical]; ok {
			continue
		}
		if i, ok := h[alias]; ok {
			h[canonical] = i
		}
	}
	return h
}

// Has reports whether col is present.
func (h Header) Has(col string) bool {
	_, ok := h[col]
	return ok
}

// Get returns the trimmed value of col in row, or "" when the column is
// missing or the row is short.
func (h Header) Get(row []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Require returns an error naming the first missing column.
func (h Header) Require(cols ...string) error {
	for _, c := range cols {
		if !h.Has(c) {
			return eris.Errorf("csv: missing column %q", c)
		}
	}
	return nil
}
