package gocbsessx

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// ErrorMapError is the peer-published metadata for a single status code.
type ErrorMapError struct {
	Name        string   `json:"name"`
	Description string   `json:"desc"`
	Attributes  []string `json:"attrs"`
}

// ErrorMap is the peer-published table of status-code metadata fetched
// once at bootstrap and used to annotate diagnostics afterwards.
type ErrorMap struct {
	Version  int
	Revision int
	Errors   map[uint16]ErrorMapError
}

type errorMapJson struct {
	Version  int                      `json:"version"`
	Revision int                      `json:"revision"`
	Errors   map[string]ErrorMapError `json:"errors"`
}

type ErrorMapParser struct{}

func (p ErrorMapParser) Parse(data []byte) (*ErrorMap, error) {
	var parsed errorMapJson
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, errors.Wrap(err, "failed to parse error map")
	}

	out := &ErrorMap{
		Version:  parsed.Version,
		Revision: parsed.Revision,
		Errors:   make(map[uint16]ErrorMapError, len(parsed.Errors)),
	}
	for codeStr, errData := range parsed.Errors {
		code, err := strconv.ParseUint(codeStr, 16, 16)
		if err != nil {
			return nil, errors.Wrap(err, "invalid error map code")
		}
		out.Errors[uint16(code)] = errData
	}

	return out, nil
}

// Error looks up the metadata for a status code.
func (m *ErrorMap) Error(code uint16) (ErrorMapError, bool) {
	errData, ok := m.Errors[code]
	return errData, ok
}
