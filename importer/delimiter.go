package importer

import (
	"strings"

	"github.com/arloliu/tugraph/types"
)

// DecodeDelimiter turns an escaped delimiter specification into its literal bytes.
//
// Supported escapes are \\, \f, \n, \r, \t, \xHH (exactly two hex digits)
// and \NNN (exactly three octal digits, value below 256). Any other byte is
// copied as is. \a and \v are rejected because the server cannot use them.
//
// Parameters:
//   - spec: The delimiter as typed by the user, e.g. `\t` or `\x1f`
//
// Returns:
//   - string: The decoded delimiter
//   - error: InputError for an unsupported, unknown or truncated escape
func DecodeDelimiter(spec string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(spec))

	for i := 0; i < len(spec); i++ {
		c := spec[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}

		begin := i
		i++
		if i == len(spec) {
			return "", types.NewInputError(`illegal escape sequence, do you mean \\?`)
		}

		switch e := spec[i]; {
		case e == '\\':
			sb.WriteByte('\\')
		case e == 'f':
			sb.WriteByte('\f')
		case e == 'n':
			sb.WriteByte('\n')
		case e == 'r':
			sb.WriteByte('\r')
		case e == 't':
			sb.WriteByte('\t')
		case e == 'a' || e == 'v':
			return "", types.NewInputError(`unsupported delimiter escape \` + string(e))
		case e == 'x':
			if i+2 > len(spec)-1 {
				return "", types.NewInputError("illegal escape sequence: " + spec[begin:])
			}
			hi, okHi := hexValue(spec[i+1])
			lo, okLo := hexValue(spec[i+2])
			if !okHi || !okLo {
				return "", types.NewInputError("illegal escape sequence: " + spec[begin:i+3])
			}
			sb.WriteByte(hi<<4 | lo)
			i += 2
		case e >= '0' && e <= '9':
			if i+2 > len(spec)-1 {
				return "", types.NewInputError("illegal escape sequence: " + spec[begin:])
			}
			v := 0
			for j := i; j < i+3; j++ {
				d := spec[j]
				if d < '0' || d > '7' {
					return "", types.NewInputError("illegal escape sequence: " + spec[begin:j+1])
				}
				v = v*8 + int(d-'0')
			}
			if v >= 256 {
				return "", types.NewInputError("illegal escape sequence: " + spec[begin:i+3])
			}
			sb.WriteByte(byte(v))
			i += 2
		default:
			return "", types.NewInputError("illegal escape sequence: " + spec[begin:i+1])
		}
	}

	return sb.String(), nil
}

// statementDelimiter decodes spec for use inside a quoted statement literal.
// A decoded delimiter containing a backslash or a single quote cannot be
// embedded in the import call and is rejected.
func statementDelimiter(spec string) (string, error) {
	delimiter, err := DecodeDelimiter(spec)
	if err != nil {
		return "", err
	}
	if strings.ContainsAny(delimiter, `\'`) {
		return "", types.NewInputError("delimiter must not contain a backslash or a single quote: " + spec)
	}

	return delimiter, nil
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
