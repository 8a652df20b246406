package importer

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// DefaultMaxPackageSize is the default upper bound for one import package.
const DefaultMaxPackageSize = 16 << 20

// Cutter splits a stream of newline-terminated records into packages.
//
// Each package holds whole records and is at most max bytes long, unless a
// single record is larger than max. Such a record is returned on its own,
// extended to the next newline.
type Cutter struct {
	r       *bufio.Reader
	max     int
	buf     []byte
	scratch []byte
	eof     bool
}

// readChunkSize caps a single read from the source.
const readChunkSize = 64 << 10

// NewCutter creates a cutter over r.
//
// Parameters:
//   - r: The data source
//   - max: Maximum package size in bytes; non-positive values use DefaultMaxPackageSize
//
// Returns:
//   - *Cutter: A new cutter
func NewCutter(r io.Reader, max int) *Cutter {
	if max <= 0 {
		max = DefaultMaxPackageSize
	}

	return &Cutter{r: bufio.NewReader(r), max: max, scratch: make([]byte, min(max+1, readChunkSize))}
}

// Next returns the next package.
//
// Returns:
//   - []byte: The package, owned by the caller
//   - error: io.EOF when the input is exhausted, or a read error
func (c *Cutter) Next() ([]byte, error) {
	if err := c.fill(); err != nil {
		return nil, err
	}
	if len(c.buf) == 0 {
		return nil, io.EOF
	}

	if c.eof && len(c.buf) <= c.max {
		return c.take(len(c.buf)), nil
	}

	window := c.buf
	if len(window) > c.max {
		window = window[:c.max]
	}
	if cut := bytes.LastIndexByte(window, '\n'); cut >= 0 {
		return c.take(cut + 1), nil
	}

	// One record exceeds max: extend to the end of the record.
	for {
		if idx := bytes.IndexByte(c.buf[len(window):], '\n'); idx >= 0 {
			return c.take(len(window) + idx + 1), nil
		}
		if c.eof {
			return c.take(len(c.buf)), nil
		}
		window = c.buf
		if err := c.readMore(); err != nil {
			return nil, err
		}
	}
}

func (c *Cutter) fill() error {
	for !c.eof && len(c.buf) <= c.max {
		if err := c.readMore(); err != nil {
			return err
		}
	}

	return nil
}

func (c *Cutter) readMore() error {
	n, err := io.ReadFull(c.r, c.scratch)
	c.buf = append(c.buf, c.scratch[:n]...)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		c.eof = true
		return nil
	default:
		return err
	}
}

func (c *Cutter) take(n int) []byte {
	out := make([]byte, n)
	copy(out, c.buf[:n])
	c.buf = c.buf[n:]

	return out
}

// LineCount returns the number of lines in a package. A trailing line
// without a newline counts as a line.
func LineCount(pkg []byte) int {
	if len(pkg) == 0 {
		return 0
	}

	n := bytes.Count(pkg, []byte{'\n'})
	if pkg[len(pkg)-1] != '\n' {
		n++
	}

	return n
}
