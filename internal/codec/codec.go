package codec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"valuestream/internal/domain"
)

// ErrNoProcesses is returned for a document without a processes list
var ErrNoProcesses = errors.New("document has no processes")

// Importer parses a value stream map document. Parsed maps carry no metrics.
type Importer interface {
	Parse(r io.Reader) (*domain.ValueStreamMap, error)
	Format() string
}

// Exporter writes a value stream map document
type Exporter interface {
	Export(m *domain.ValueStreamMap, w io.Writer) error
	Format() string
}

// Codec is both an Importer and an Exporter
type Codec interface {
	Importer
	Exporter
}

// ForFormat returns the codec registered for a format name
func ForFormat(format string) (Codec, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// ForPath picks a codec from a file extension
func ForPath(path string) (Codec, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return nil, fmt.Errorf("cannot determine format of %s", path)
	}
	return ForFormat(ext)
}

// Supported reports whether path has an extension a codec understands
func Supported(path string) bool {
	_, err := ForPath(path)
	return err == nil
}

// LoadFile reads and parses a map document from disk
func LoadFile(path string) (*domain.ValueStreamMap, error) {
	c, err := ForPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	m, err := c.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// finish fills generated connection IDs and drops any metrics carried by
// the document
func finish(m *domain.ValueStreamMap) *domain.ValueStreamMap {
	for i := range m.Connections {
		if m.Connections[i].ID == "" {
			m.Connections[i].ID = m.Connections[i].GenerateID()
		}
	}
	for i := range m.Processes {
		m.Processes[i].Metrics.CycleTime = nil
		m.Processes[i].Metrics.ReworkCycleTime = nil
	}
	m.Metrics = domain.NewStreamMetrics()
	return m
}
