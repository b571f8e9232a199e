// Package types maps UPnP data-type tokens to concrete serializers.
//
// Every argument crossing the SOAP boundary is typed by the state
// variable it relates to; the registry turns the variable's declared
// token (ui4, string, boolean, ...) into a Codec that decodes inbound
// wire strings into Go values and encodes handler results back out.
package types

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ErrUnknownType is returned by Lookup for tokens the registry does not know.
var ErrUnknownType = errors.New("unknown UPnP data type")

// Codec converts between wire strings and Go values for one data type token.
type Codec struct {
	Token  string
	Decode func(s string) (any, error)
	Encode func(v any) (string, error)
}

// Lookup returns the codec for a UPnP data-type token.
func Lookup(token string) (*Codec, error) {
	c, ok := registry[token]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, token)
	}
	return c, nil
}

// Tokens returns every registered data-type token.
func Tokens() []string {
	out := make([]string, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	return out
}

var uuidRe = regexp.MustCompile(`\A[a-f\d]{8}-[a-f\d]{4}-[a-f\d]{4}-[a-f\d]{4}-[a-f\d]{12}\z`)

// ISO 8601 layouts accepted per token. The first layout of each list is
// the one used for encoding.
var (
	dateLayouts       = []string{"2006-01-02"}
	dateTimeLayouts   = []string{"2006-01-02T15:04:05", "2006-01-02T15:04"}
	dateTimeTZLayouts = []string{"2006-01-02T15:04:05-07:00", "2006-01-02T15:04:05Z07:00", "2006-01-02T15:04:05"}
	timeLayouts       = []string{"15:04:05", "15:04"}
	timeTZLayouts     = []string{"15:04:05-07:00", "15:04:05Z07:00", "15:04:05"}
)

var registry = map[string]*Codec{}

func register(c *Codec) {
	registry[c.Token] = c
}

func init() {
	for _, tok := range []string{"ui1", "ui2", "ui4"} {
		register(unsignedCodec(tok))
	}
	for _, tok := range []string{"i1", "i2", "i4", "int"} {
		register(signedCodec(tok))
	}
	for _, tok := range []string{"r4", "r8", "number", "float", "fixed.14.4"} {
		register(floatCodec(tok))
	}
	register(charCodec())
	register(stringCodec())
	register(dateCodec("date", dateLayouts))
	register(dateCodec("dateTime", dateTimeLayouts))
	register(dateCodec("dateTime.tz", dateTimeTZLayouts))
	register(dateCodec("time", timeLayouts))
	register(dateCodec("time.tz", timeTZLayouts))
	register(booleanCodec())
	register(base64Codec())
	register(hexCodec())
	register(uriCodec())
	register(uuidCodec())
}

func unsignedBits(token string) int {
	switch token {
	case "ui1":
		return 8
	case "ui2":
		return 16
	default:
		return 32
	}
}

func signedBits(token string) int {
	switch token {
	case "i1":
		return 8
	case "i2":
		return 16
	default:
		return 32
	}
}

func unsignedCodec(token string) *Codec {
	bits := unsignedBits(token)
	return &Codec{
		Token: token,
		Decode: func(s string) (any, error) {
			n, err := strconv.ParseUint(strings.TrimSpace(s), 10, bits)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", token, err)
			}
			return n, nil
		},
		Encode: func(v any) (string, error) {
			n, err := toUint64(v)
			if err != nil {
				return "", fmt.Errorf("%s: %w", token, err)
			}
			if bits < 64 && n >= 1<<uint(bits) {
				return "", fmt.Errorf("%s: value %d out of range", token, n)
			}
			return strconv.FormatUint(n, 10), nil
		},
	}
}

func signedCodec(token string) *Codec {
	bits := signedBits(token)
	return &Codec{
		Token: token,
		Decode: func(s string) (any, error) {
			n, err := strconv.ParseInt(strings.TrimSpace(s), 10, bits)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", token, err)
			}
			return n, nil
		},
		Encode: func(v any) (string, error) {
			n, err := toInt64(v)
			if err != nil {
				return "", fmt.Errorf("%s: %w", token, err)
			}
			if bits < 64 {
				lim := int64(1) << uint(bits-1)
				if n >= lim || n < -lim {
					return "", fmt.Errorf("%s: value %d out of range", token, n)
				}
			}
			return strconv.FormatInt(n, 10), nil
		},
	}
}

func floatCodec(token string) *Codec {
	return &Codec{
		Token: token,
		Decode: func(s string) (any, error) {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", token, err)
			}
			return f, nil
		},
		Encode: func(v any) (string, error) {
			f, err := toFloat64(v)
			if err != nil {
				return "", fmt.Errorf("%s: %w", token, err)
			}
			if token == "fixed.14.4" {
				return strconv.FormatFloat(f, 'f', 4, 64), nil
			}
			return strconv.FormatFloat(f, 'g', -1, 64), nil
		},
	}
}

func charCodec() *Codec {
	return &Codec{
		Token: "char",
		Decode: func(s string) (any, error) {
			if utf8.RuneCountInString(s) != 1 {
				return nil, fmt.Errorf("char: %q is not a single character", s)
			}
			return s, nil
		},
		Encode: func(v any) (string, error) {
			s, ok := v.(string)
			if !ok {
				if r, isRune := v.(rune); isRune {
					s = string(r)
					ok = true
				}
			}
			if !ok || utf8.RuneCountInString(s) != 1 {
				return "", fmt.Errorf("char: %v is not a single character", v)
			}
			return s, nil
		},
	}
}

func stringCodec() *Codec {
	return &Codec{
		Token:  "string",
		Decode: func(s string) (any, error) { return s, nil },
		Encode: func(v any) (string, error) {
			s, ok := v.(string)
			if !ok {
				return "", fmt.Errorf("string: cannot encode %T", v)
			}
			return s, nil
		},
	}
}

func dateCodec(token string, layouts []string) *Codec {
	return &Codec{
		Token: token,
		Decode: func(s string) (any, error) {
			s = strings.TrimSpace(s)
			var lastErr error
			for _, layout := range layouts {
				t, err := time.Parse(layout, s)
				if err == nil {
					return t, nil
				}
				lastErr = err
			}
			return nil, fmt.Errorf("%s: %w", token, lastErr)
		},
		Encode: func(v any) (string, error) {
			t, ok := v.(time.Time)
			if !ok {
				return "", fmt.Errorf("%s: cannot encode %T", token, v)
			}
			return t.Format(layouts[0]), nil
		},
	}
}

func booleanCodec() *Codec {
	return &Codec{
		Token: "boolean",
		Decode: func(s string) (any, error) {
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "1", "true", "yes":
				return true, nil
			case "0", "false", "no":
				return false, nil
			}
			return nil, fmt.Errorf("boolean: invalid value %q", s)
		},
		Encode: func(v any) (string, error) {
			b, ok := v.(bool)
			if !ok {
				return "", fmt.Errorf("boolean: cannot encode %T", v)
			}
			if b {
				return "1", nil
			}
			return "0", nil
		},
	}
}

func base64Codec() *Codec {
	return &Codec{
		Token: "bin.base64",
		Decode: func(s string) (any, error) {
			b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
			if err != nil {
				return nil, fmt.Errorf("bin.base64: %w", err)
			}
			return b, nil
		},
		Encode: func(v any) (string, error) {
			b, ok := v.([]byte)
			if !ok {
				return "", fmt.Errorf("bin.base64: cannot encode %T", v)
			}
			return base64.StdEncoding.EncodeToString(b), nil
		},
	}
}

func hexCodec() *Codec {
	return &Codec{
		Token: "bin.hex",
		Decode: func(s string) (any, error) {
			b, err := hex.DecodeString(strings.TrimSpace(s))
			if err != nil {
				return nil, fmt.Errorf("bin.hex: %w", err)
			}
			return b, nil
		},
		Encode: func(v any) (string, error) {
			b, ok := v.([]byte)
			if !ok {
				return "", fmt.Errorf("bin.hex: cannot encode %T", v)
			}
			return hex.EncodeToString(b), nil
		},
	}
}

func uriCodec() *Codec {
	return &Codec{
		Token: "uri",
		Decode: func(s string) (any, error) {
			u, err := url.Parse(strings.TrimSpace(s))
			if err != nil {
				return nil, fmt.Errorf("uri: %w", err)
			}
			return u, nil
		},
		Encode: func(v any) (string, error) {
			switch u := v.(type) {
			case *url.URL:
				return u.String(), nil
			case string:
				return u, nil
			}
			return "", fmt.Errorf("uri: cannot encode %T", v)
		},
	}
}

func uuidCodec() *Codec {
	return &Codec{
		Token: "uuid",
		Decode: func(s string) (any, error) {
			s = strings.TrimSpace(s)
			if !uuidRe.MatchString(s) {
				return nil, fmt.Errorf("uuid: invalid format %q", s)
			}
			u, err := uuid.Parse(s)
			if err != nil {
				return nil, fmt.Errorf("uuid: %w", err)
			}
			return u, nil
		},
		Encode: func(v any) (string, error) {
			switch u := v.(type) {
			case uuid.UUID:
				return u.String(), nil
			case string:
				if !uuidRe.MatchString(u) {
					return "", fmt.Errorf("uuid: invalid format %q", u)
				}
				return u, nil
			}
			return "", fmt.Errorf("uuid: cannot encode %T", v)
		},
	}
}

func toUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case uint64:
		return n, nil
	case int:
		if n < 0 {
			return 0, fmt.Errorf("negative value %d", n)
		}
		return uint64(n), nil
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("negative value %d", n)
		}
		return uint64(n), nil
	}
	return 0, fmt.Errorf("cannot encode %T as unsigned", v)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	}
	return 0, fmt.Errorf("cannot encode %T as signed", v)
}

func toFloat64(v any) (float64, error) {
	switch f := v.(type) {
	case float32:
		return float64(f), nil
	case float64:
		return f, nil
	case int:
		return float64(f), nil
	case int64:
		return float64(f), nil
	}
	return 0, fmt.Errorf("cannot encode %T as float", v)
}
