// Package signing produces the canonical form of JSON-like payloads and
// signs it with HMAC-SHA256 so the control plane and the bridge agent can
// trust each other's job and result payloads.
package signing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Canonicalize renders v as deterministic JSON bytes.
//
// v is first normalized through encoding/json, so structs follow their json
// tags and json.RawMessage values are taken as-is. Object keys are sorted by
// byte order, array order is kept, and numbers are rendered the same way no
// matter how they were written (1, 1.0 and 1e0 are one canonical number).
// Embedded JSON with repeated object keys or invalid UTF-8 is rejected with
// ErrAmbiguousJSON.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	if err := checkUnambiguous(raw); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var normalized any
	if err := dec.Decode(&normalized); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, normalized); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch value := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(value))
	case json.Number:
		num, err := canonicalNumber(value)
		if err != nil {
			return err
		}
		buf.WriteString(num)
	case string:
		return writeString(buf, value)
	case []any:
		buf.WriteByte('[')
		for i, elem := range value {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(value))
		for k := range value {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, value[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported canonical value of type %T", v)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode string: %w", err)
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}

// canonicalNumber keeps exact int64 values and folds every other number
// through float64 so equal values share one spelling.
func canonicalNumber(n json.Number) (string, error) {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}

	f, err := n.Float64()
	if err != nil {
		return "", fmt.Errorf("invalid number %q: %w", n.String(), err)
	}

	if f == math.Trunc(f) && math.Abs(f) < math.MaxInt64 {
		return strconv.FormatInt(int64(f), 10), nil
	}

	out, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("invalid number %q: %w", n.String(), err)
	}
	return string(out), nil
}
