package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"

	"github.com/heig-tin/baygon/pkg/runner"
)

// MarshalJSON encodes rep in RFC 8785 canonical form: sorted keys, no
// insignificant whitespace, canonical numbers.
func MarshalJSON(rep *runner.Report) ([]byte, error) {
	raw, err := json.Marshal(rep)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	out, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize report: %w", err)
	}
	return out, nil
}

// WriteJSON writes the canonical report followed by a newline.
func WriteJSON(w io.Writer, rep *runner.Report) error {
	data, err := MarshalJSON(rep)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
