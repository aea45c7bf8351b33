package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang/snappy"

	"valuestream/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullToFloatPtr converts sql.NullFloat64 to *float64
func nullToFloatPtr(nf sql.NullFloat64) *float64 {
	if nf.Valid {
		return domain.Float(nf.Float64)
	}
	return nil
}

// floatPtrToNull converts *float64 to sql.NullFloat64
func floatPtrToNull(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// ============================================================================
// Time Helpers
// ============================================================================

// timeLayout is fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// formatTime renders timestamps as sortable UTC text
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime reads a stored timestamp, returning zero time for bad input
func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ============================================================================
// Metrics Snapshot
// ============================================================================

// encodeMetrics stores stream metrics as snappy-compressed JSON
func encodeMetrics(m domain.StreamMetrics) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, data), nil
}

// decodeMetrics reverses encodeMetrics. An empty blob yields zero metrics.
func decodeMetrics(blob []byte) (domain.StreamMetrics, error) {
	m := domain.NewStreamMetrics()
	if len(blob) == 0 {
		return m, nil
	}

	data, err := snappy.Decode(nil, blob)
	if err != nil {
		return m, fmt.Errorf("decompress metrics: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("unmarshal metrics: %w", err)
	}
	if m.CycleTimeByProcess == nil {
		m.CycleTimeByProcess = make(map[string]float64)
	}
	if m.ReworkCycleTimeByProcess == nil {
		m.ReworkCycleTimeByProcess = make(map[string]float64)
	}
	return m, nil
}

// ============================================================================
// Schema Evolution Guide
// ============================================================================
//
// To add a new column to the processes table:
// 1. Add field to processRow struct (below)
// 2. Update scanArgs() - APPEND to end to match column order
// 3. Update processColumns constant - APPEND to end
// 4. Update toDomain() and processInsertArgs()
// 5. Add the column to the CREATE TABLE in sqlite.go migrate()
// 6. Update relevant tests
//
// CRITICAL: Column order must match between:
// - processColumns constant
// - scanArgs() return slice
// - processInsertArgs() return slice
//
// Same pattern applies to connections.

// ============================================================================
// Process Row Scanner
// ============================================================================

// processRow holds all columns from a process query for scanning
type processRow struct {
	ID               string
	Name             string
	Description      sql.NullString
	PositionX        float64
	PositionY        float64
	ProcessTime      float64
	CompleteAccurate sql.NullFloat64
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match processColumns order exactly:
// id, name, description, position_x, position_y, process_time, complete_accurate
func (r *processRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,               // 1
		&r.Name,             // 2
		&r.Description,      // 3
		&r.PositionX,        // 4
		&r.PositionY,        // 5
		&r.ProcessTime,      // 6
		&r.CompleteAccurate, // 7
	}
}

// toDomain converts the scanned row to a domain.ProcessBlock
func (r *processRow) toDomain() domain.ProcessBlock {
	return domain.ProcessBlock{
		ID:          r.ID,
		Name:        r.Name,
		Description: nullToString(r.Description),
		Position:    domain.NewPosition(r.PositionX, r.PositionY),
		Metrics: domain.ProcessMetrics{
			ProcessTime:      r.ProcessTime,
			CompleteAccurate: nullToFloatPtr(r.CompleteAccurate),
		},
	}
}

// processColumns is the column list for process queries
const processColumns = `id, name, description, position_x, position_y, process_time, complete_accurate`

// processInsertArgs prepares arguments in processColumns order
func processInsertArgs(p *domain.ProcessBlock) []interface{} {
	return []interface{}{
		p.ID,
		p.Name,
		stringToNull(p.Description),
		p.Position.X,
		p.Position.Y,
		p.Metrics.ProcessTime,
		floatPtrToNull(p.Metrics.CompleteAccurate),
	}
}

// ============================================================================
// Connection Row Scanner
// ============================================================================

// connectionRow holds all columns from a connection query for scanning
type connectionRow struct {
	ID       string
	SourceID string
	TargetID string
	IsRework int64
	WaitTime float64
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match connectionColumns order exactly:
// id, source_id, target_id, is_rework, wait_time
func (r *connectionRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,       // 1
		&r.SourceID, // 2
		&r.TargetID, // 3
		&r.IsRework, // 4
		&r.WaitTime, // 5
	}
}

// toDomain converts the scanned row to a domain.Connection
func (r *connectionRow) toDomain() domain.Connection {
	return domain.Connection{
		ID:       r.ID,
		SourceID: r.SourceID,
		TargetID: r.TargetID,
		IsRework: r.IsRework != 0,
		Metrics:  domain.ConnectionMetrics{WaitTime: r.WaitTime},
	}
}

// connectionColumns is the column list for connection queries
const connectionColumns = `id, source_id, target_id, is_rework, wait_time`

// connectionInsertArgs prepares arguments in connectionColumns order
func connectionInsertArgs(c *domain.Connection) []interface{} {
	isRework := 0
	if c.IsRework {
		isRework = 1
	}
	return []interface{}{
		c.ID,
		c.SourceID,
		c.TargetID,
		isRework,
		c.Metrics.WaitTime,
	}
}
