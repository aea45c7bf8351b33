package codec

import (
	"fmt"
	"io"

	"valuestream/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML import/export with snake_case keys
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// yamlMap represents the YAML structure of a value stream map
type yamlMap struct {
	ID          string           `yaml:"id"`
	Title       string           `yaml:"title"`
	Processes   []yamlProcess    `yaml:"processes"`
	Connections []yamlConnection `yaml:"connections"`
	Metrics     *yamlMetrics     `yaml:"metrics,omitempty"`
}

type yamlProcess struct {
	ID               string    `yaml:"id"`
	Name             string    `yaml:"name"`
	Description      string    `yaml:"description,omitempty"`
	Position         yamlPoint `yaml:"position"`
	ProcessTime      float64   `yaml:"process_time"`
	CompleteAccurate *float64  `yaml:"complete_accurate,omitempty"`
}

type yamlPoint struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type yamlConnection struct {
	ID       string  `yaml:"id,omitempty"`
	SourceID string  `yaml:"source_id"`
	TargetID string  `yaml:"target_id"`
	IsRework bool    `yaml:"is_rework,omitempty"`
	WaitTime float64 `yaml:"wait_time"`
}

// yamlMetrics is written on export for readers; it is ignored on import
type yamlMetrics struct {
	TotalLeadTime       float64            `yaml:"total_lead_time"`
	TotalValueAddedTime float64            `yaml:"total_value_added_time"`
	ValueAddedRatio     float64            `yaml:"value_added_ratio"`
	TotalReworkTime     float64            `yaml:"total_rework_time"`
	WorstCaseLeadTime   float64            `yaml:"worst_case_lead_time"`
	AverageLeadTime     float64            `yaml:"average_lead_time"`
	CycleTime           map[string]float64 `yaml:"cycle_time_by_process,omitempty"`
	ReworkCycleTime     map[string]float64 `yaml:"rework_cycle_time_by_process,omitempty"`
}

// Parse imports a map from YAML
func (c *YAMLCodec) Parse(r io.Reader) (*domain.ValueStreamMap, error) {
	var ym yamlMap
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&ym); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if ym.Processes == nil {
		return nil, ErrNoProcesses
	}

	m := &domain.ValueStreamMap{
		ID:          ym.ID,
		Title:       ym.Title,
		Processes:   make([]domain.ProcessBlock, 0, len(ym.Processes)),
		Connections: make([]domain.Connection, 0, len(ym.Connections)),
	}

	for _, yp := range ym.Processes {
		m.Processes = append(m.Processes, domain.ProcessBlock{
			ID:          yp.ID,
			Name:        yp.Name,
			Description: yp.Description,
			Position:    domain.NewPosition(yp.Position.X, yp.Position.Y),
			Metrics: domain.ProcessMetrics{
				ProcessTime:      yp.ProcessTime,
				CompleteAccurate: yp.CompleteAccurate,
			},
		})
	}

	for _, yc := range ym.Connections {
		m.Connections = append(m.Connections, domain.Connection{
			ID:       yc.ID,
			SourceID: yc.SourceID,
			TargetID: yc.TargetID,
			IsRework: yc.IsRework,
			Metrics:  domain.ConnectionMetrics{WaitTime: yc.WaitTime},
		})
	}

	return finish(m), nil
}

// Export exports a map to YAML
func (c *YAMLCodec) Export(m *domain.ValueStreamMap, w io.Writer) error {
	ym := yamlMap{
		ID:          m.ID,
		Title:       m.Title,
		Processes:   make([]yamlProcess, 0, len(m.Processes)),
		Connections: make([]yamlConnection, 0, len(m.Connections)),
		Metrics: &yamlMetrics{
			TotalLeadTime:       m.Metrics.TotalLeadTime,
			TotalValueAddedTime: m.Metrics.TotalValueAddedTime,
			ValueAddedRatio:     m.Metrics.ValueAddedRatio,
			TotalReworkTime:     m.Metrics.TotalReworkTime,
			WorstCaseLeadTime:   m.Metrics.WorstCaseLeadTime,
			AverageLeadTime:     m.Metrics.AverageLeadTime,
			CycleTime:           m.Metrics.CycleTimeByProcess,
			ReworkCycleTime:     m.Metrics.ReworkCycleTimeByProcess,
		},
	}

	for _, p := range m.Processes {
		ym.Processes = append(ym.Processes, yamlProcess{
			ID:               p.ID,
			Name:             p.Name,
			Description:      p.Description,
			Position:         yamlPoint{X: p.Position.X, Y: p.Position.Y},
			ProcessTime:      p.Metrics.ProcessTime,
			CompleteAccurate: p.Metrics.CompleteAccurate,
		})
	}

	for _, conn := range m.Connections {
		ym.Connections = append(ym.Connections, yamlConnection{
			ID:       conn.ID,
			SourceID: conn.SourceID,
			TargetID: conn.TargetID,
			IsRework: conn.IsRework,
			WaitTime: conn.Metrics.WaitTime,
		})
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&ym); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}
