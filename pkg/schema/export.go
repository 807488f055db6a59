package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

const schemaID = "https://github.com/heig-tin/baygon/schemas/baygon-v1.json"

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document from
// the Go Config struct using invopop/jsonschema.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&Config{})
	s.ID = schemaID
	s.Title = "Baygon test description v1"
	s.Description = "Schema for baygon test description files (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
