package signing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrAmbiguousJSON is returned for JSON that decodes to a value other than
// the one its bytes spell out: invalid UTF-8 or repeated object keys.
var ErrAmbiguousJSON = errors.New("ambiguous json")

// checkUnambiguous rejects documents whose decoded form would lose
// information, so two different byte strings never share a canonical form.
func checkUnambiguous(raw []byte) error {
	if !utf8.Valid(raw) {
		return fmt.Errorf("%w: invalid utf-8", ErrAmbiguousJSON)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return checkValue(dec)
}

func checkValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return nil
	}

	switch delim {
	case '{':
		seen := make(map[string]struct{})
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return err
			}
			key, _ := keyTok.(string)
			if _, dup := seen[key]; dup {
				return fmt.Errorf("%w: duplicate key %q", ErrAmbiguousJSON, key)
			}
			seen[key] = struct{}{}

			if err := checkValue(dec); err != nil {
				return err
			}
		}
	case '[':
		for dec.More() {
			if err := checkValue(dec); err != nil {
				return err
			}
		}
	}

	// closing delimiter
	_, err = dec.Token()
	return err
}
