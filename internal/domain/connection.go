package domain

import (
	"crypto/sha256"
	"fmt"
)

// ConnectionMetrics holds the timing of a transition between two processes
type ConnectionMetrics struct {
	WaitTime float64 `json:"waitTime"`
}

// Connection is a directed transition from one process to another.
// IsRework marks a feedback edge that returns rejected work upstream.
type Connection struct {
	ID       string            `json:"id"`
	SourceID string            `json:"sourceId"`
	TargetID string            `json:"targetId"`
	IsRework bool              `json:"isRework,omitempty"`
	Metrics  ConnectionMetrics `json:"metrics"`
}

// NewConnection creates a normal flow connection
func NewConnection(id, sourceID, targetID string, waitTime float64) Connection {
	return Connection{
		ID:       id,
		SourceID: sourceID,
		TargetID: targetID,
		Metrics:  ConnectionMetrics{WaitTime: waitTime},
	}
}

// NewReworkConnection creates a feedback connection from the rejecting
// process back to the process that redoes the work
func NewReworkConnection(id, sourceID, targetID string, waitTime float64) Connection {
	c := NewConnection(id, sourceID, targetID, waitTime)
	c.IsRework = true
	return c
}

// WaitTime returns the queueing time, treating negative or NaN input as 0
func (c Connection) WaitTime() float64 {
	return nonNegative(c.Metrics.WaitTime)
}

// GenerateID creates a deterministic ID from the endpoints and the edge kind.
// Unlike an undirected link, A->B and B->A are different transitions.
func (c Connection) GenerateID() string {
	kind := "flow"
	if c.IsRework {
		kind = "rework"
	}
	key := fmt.Sprintf("%s->%s:%s", c.SourceID, c.TargetID, kind)
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", hash[:8])
}

// Involves checks if this connection touches the given process ID
func (c Connection) Involves(processID string) bool {
	return c.SourceID == processID || c.TargetID == processID
}
