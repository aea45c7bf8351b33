package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"valuestream/internal/domain"
)

// JSONCodec handles JSON import/export using the interchange field names
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// jsonDocument is either a bare map or a saved file wrapping one as
// {"version": ..., "data": {...}}
type jsonDocument struct {
	Version   string          `json:"version"`
	Data      json.RawMessage `json:"data"`
	Processes json.RawMessage `json:"processes"`
}

// Parse imports a map from JSON, bare or wrapped in a versioned envelope
func (c *JSONCodec) Parse(r io.Reader) (*domain.ValueStreamMap, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON: %w", err)
	}

	var doc jsonDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if doc.Processes == nil && doc.Data != nil {
		raw = doc.Data
		doc = jsonDocument{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON data: %w", err)
		}
	}
	if doc.Processes == nil {
		return nil, ErrNoProcesses
	}

	var m domain.ValueStreamMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return finish(&m), nil
}

// Export exports a map, metrics included, to JSON
func (c *JSONCodec) Export(m *domain.ValueStreamMap, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(m); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
