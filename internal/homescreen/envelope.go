// envelope.go defines the four-field import/export envelope.
package homescreen

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the interchange format for configuration import and export.
// All four fields are required on import; export always writes all four.
type Envelope struct {
	ConfigID      string          `json:"configId"`
	SchemaVersion string          `json:"schemaVersion"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	Data          json.RawMessage `json:"data"`
}

// ParseEnvelope decodes and field-checks an import payload. It does not
// validate the schema version or the document; those are the next steps of the
// import pipeline and produce their own error codes.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed import file: %w", err)
	}
	if env.ConfigID == "" {
		return nil, fmt.Errorf("import file missing configId")
	}
	if env.SchemaVersion == "" {
		return nil, fmt.Errorf("import file missing schemaVersion")
	}
	if env.UpdatedAt.IsZero() {
		return nil, fmt.Errorf("import file missing updatedAt")
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("import file missing data")
	}
	return &env, nil
}
