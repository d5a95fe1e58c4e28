// SPDX-License-Identifier: MIT

package xtream

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// flexString decodes a JSON string, number, null or bool into a string.
// Xtream panels disagree on scalar types per field, per panel version.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		// Integral floats render without the trailing ".0" servers add.
		if i, convErr := n.Int64(); convErr == nil {
			*f = flexString(strconv.FormatInt(i, 10))
		} else {
			*f = flexString(n.String())
		}
		return nil
	}
	*f = flexString(strings.Trim(string(data), `"`))
	return nil
}

// flexInt decodes a JSON number or numeric string. known distinguishes
// "field present with value 0" from "field absent".
type flexInt struct {
	value int
	known bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := strings.Trim(string(data), `"`)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		// Tolerate floats like "1.0".
		fv, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return nil // unusable scalar, treat as absent
		}
		v = int(fv)
	}
	f.value = v
	f.known = true
	return nil
}

// flexFloat decodes a JSON number or numeric string; unusable input
// decodes to zero rather than failing the whole record.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	s := strings.Trim(string(data), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}
