package codec

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valuestream/internal/core/vsm"
)

const yamlDoc = `
id: review
title: Review Stream
processes:
  - id: draft
    name: Draft
    position: {x: 0, y: 0}
    process_time: 10
    complete_accurate: 80
  - id: review
    name: Review
    position: {x: 200, y: 0}
    process_time: 5
connections:
  - source_id: draft
    target_id: review
    wait_time: 3
  - id: back
    source_id: review
    target_id: draft
    is_rework: true
    wait_time: 1
`

const jsonDoc = `{
  "id": "review",
  "title": "Review Stream",
  "processes": [
    {"id": "draft", "name": "Draft", "position": {"x": 0, "y": 0},
     "metrics": {"processTime": 10, "completeAccurate": 80, "cycleTime": 999}},
    {"id": "review", "name": "Review", "position": {"x": 200, "y": 0},
     "metrics": {"processTime": 5}}
  ],
  "connections": [
    {"sourceId": "draft", "targetId": "review", "metrics": {"waitTime": 3}},
    {"id": "back", "sourceId": "review", "targetId": "draft", "isRework": true, "metrics": {"waitTime": 1}}
  ],
  "metrics": {"totalLeadTime": 12345}
}`

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		codec Codec
		doc   string
	}{
		{"yaml", NewYAMLCodec(), yamlDoc},
		{"json", NewJSONCodec(), jsonDoc},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := tt.codec.Parse(strings.NewReader(tt.doc))
			require.NoError(t, err)

			assert.Equal(t, "review", m.ID)
			assert.Equal(t, "Review Stream", m.Title)
			require.Len(t, m.Processes, 2)
			assert.Equal(t, 10.0, m.Processes[0].Metrics.ProcessTime)
			require.NotNil(t, m.Processes[0].Metrics.CompleteAccurate)
			assert.Equal(t, 80.0, *m.Processes[0].Metrics.CompleteAccurate)
			assert.Nil(t, m.Processes[0].Metrics.CycleTime)
			assert.Nil(t, m.Processes[1].Metrics.CompleteAccurate)
			assert.Equal(t, 200.0, m.Processes[1].Position.X)

			require.Len(t, m.Connections, 2)
			assert.Equal(t, m.Connections[0].GenerateID(), m.Connections[0].ID)
			assert.Equal(t, 3.0, m.Connections[0].Metrics.WaitTime)
			assert.Equal(t, "back", m.Connections[1].ID)
			assert.True(t, m.Connections[1].IsRework)

			assert.Equal(t, 0.0, m.Metrics.TotalLeadTime)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	_, err := NewJSONCodec().Parse(strings.NewReader("{not json"))
	assert.Error(t, err)

	_, err = NewYAMLCodec().Parse(strings.NewReader("processes: [unterminated"))
	assert.Error(t, err)
}

func TestParseVersionedEnvelope(t *testing.T) {
	doc := `{"version": "1.0.0", "data": ` + jsonDoc + `}`

	m, err := NewJSONCodec().Parse(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, "review", m.ID)
	assert.Equal(t, "Review Stream", m.Title)
	require.Len(t, m.Processes, 2)
	assert.Equal(t, 10.0, m.Processes[0].Metrics.ProcessTime)
	require.Len(t, m.Connections, 2)
	assert.True(t, m.Connections[1].IsRework)
	assert.Equal(t, 0.0, m.Metrics.TotalLeadTime)
}

func TestParseRejectsDocumentWithoutProcesses(t *testing.T) {
	tests := []struct {
		name  string
		codec Codec
		doc   string
	}{
		{"json empty object", NewJSONCodec(), `{}`},
		{"json unknown wrapper", NewJSONCodec(), `{"version": "1.0.0", "payload": {"processes": []}}`},
		{"json envelope without processes", NewJSONCodec(), `{"version": "1.0.0", "data": {"id": "vsm1"}}`},
		{"yaml title only", NewYAMLCodec(), "id: m\ntitle: Nothing here\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.codec.Parse(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, ErrNoProcesses)
		})
	}
}

func TestParseAcceptsEmptyProcessList(t *testing.T) {
	m, err := NewJSONCodec().Parse(strings.NewReader(`{"id": "m", "processes": []}`))
	require.NoError(t, err)
	assert.Empty(t, m.Processes)

	m, err = NewYAMLCodec().Parse(strings.NewReader("id: m\nprocesses: []\n"))
	require.NoError(t, err)
	assert.Empty(t, m.Processes)
}

func TestExportThenParsePreservesStructure(t *testing.T) {
	sample := vsm.Sample()

	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			c, err := ForFormat(format)
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, c.Export(&sample, &buf))

			parsed, err := c.Parse(&buf)
			require.NoError(t, err)

			rebuilt := vsm.Create(parsed.ID, parsed.Title, parsed.Processes, parsed.Connections)
			assert.Equal(t, sample, rebuilt)
		})
	}
}

func TestYAMLExportIncludesMetrics(t *testing.T) {
	sample := vsm.Sample()

	var buf bytes.Buffer
	require.NoError(t, NewYAMLCodec().Export(&sample, &buf))

	out := buf.String()
	assert.Contains(t, out, "total_lead_time: 210")
	assert.Contains(t, out, "process_time: 60")
	assert.Contains(t, out, "is_rework: true")
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		format   string
		expected string
		wantErr  bool
	}{
		{"json", "json", false},
		{"JSON", "json", false},
		{"yaml", "yaml", false},
		{"yml", "yaml", false},
		{"ansible", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			c, err := ForFormat(tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, c.Format())
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "stream.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0644))

	m, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "review", m.ID)

	assert.True(t, Supported(path))
	assert.False(t, Supported(filepath.Join(dir, "notes.txt")))
	assert.False(t, Supported(filepath.Join(dir, "README")))

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
