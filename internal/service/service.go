package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"valuestream/internal/codec"
	"valuestream/internal/core/engine"
	"valuestream/internal/core/vsm"
	"valuestream/internal/domain"
	"valuestream/internal/repository"
	"valuestream/internal/telemetry"
)

var (
	// ErrNotFound is returned when a map, process or connection does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalid is returned when input fails validation
	ErrInvalid = errors.New("invalid input")
	// ErrConflict is returned when creating a map whose ID is taken
	ErrConflict = errors.New("already exists")
)

// CalculationResult is the outcome of a stateless calculation
type CalculationResult struct {
	Processes []domain.ProcessBlock `json:"processes"`
	Metrics   domain.StreamMetrics  `json:"metrics"`
}

// MapService provides business logic for value stream maps
type MapService struct {
	repo     repository.Repository
	eventBus *EventBus
	mutator  vsm.Mutator
	metrics  *telemetry.Registry
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*mapLock
}

// mapLock is dropped from MapService.locks once nobody holds or waits on it
type mapLock struct {
	sync.Mutex
	refs int
}

// NewMapService creates a new map service
func NewMapService(repo repository.Repository, eventBus *EventBus, mutator vsm.Mutator) *MapService {
	return &MapService{
		repo:     repo,
		eventBus: eventBus,
		mutator:  mutator,
		logger:   slog.Default(),
		locks:    make(map[string]*mapLock),
	}
}

// WithTelemetry attaches a metrics registry
func (s *MapService) WithTelemetry(r *telemetry.Registry) *MapService {
	s.metrics = r
	return s
}

// WithLogger replaces the default logger
func (s *MapService) WithLogger(l *slog.Logger) *MapService {
	if l != nil {
		s.logger = l
	}
	return s
}

// ListMaps returns a summary of every stored map
func (s *MapService) ListMaps(ctx context.Context) ([]domain.MapSummary, error) {
	return s.repo.ListMaps(ctx)
}

// GetMap retrieves a stored map by ID
func (s *MapService) GetMap(ctx context.Context, id string) (*domain.ValueStreamMap, error) {
	m, err := s.repo.GetMap(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("map %s %w", id, ErrNotFound)
	}
	return m, nil
}

// GetProjectedMap retrieves a map with per-process cycle and rework times
// filled in for display
func (s *MapService) GetProjectedMap(ctx context.Context, id string) (*domain.ValueStreamMap, error) {
	m, err := s.GetMap(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Project(m), nil
}

// Project returns a copy of m whose processes carry derived cycle and
// rework times
func (s *MapService) Project(m *domain.ValueStreamMap) *domain.ValueStreamMap {
	out := m.Clone()
	out.Processes = s.mutator.Project(*m)
	return &out
}

// GetMetrics returns the stored stream metrics of a map
func (s *MapService) GetMetrics(ctx context.Context, id string) (*domain.StreamMetrics, error) {
	m, err := s.GetMap(ctx, id)
	if err != nil {
		return nil, err
	}
	return &m.Metrics, nil
}

// CreateMap validates and stores a new map. An empty ID is generated.
// The input is left untouched.
func (s *MapService) CreateMap(ctx context.Context, in *domain.ValueStreamMap) (*domain.ValueStreamMap, error) {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	connections := withConnectionIDs(in.Connections)
	if err := ValidateContents(in.Processes, connections); err != nil {
		return nil, err
	}

	unlock := s.lock(id)
	defer unlock()

	existing, err := s.repo.GetMap(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("map %s %w", id, ErrConflict)
	}

	start := time.Now()
	m := s.mutator.Create(id, in.Title, in.Processes, connections)
	s.metrics.RecordRecalculation("create", time.Since(start))

	if err := s.save(ctx, &m, Event{Type: EventMapCreated, Payload: payload(&m, "")}); err != nil {
		return nil, err
	}
	s.logger.Info("service: map created", "map_id", m.ID, "processes", len(m.Processes))
	return &m, nil
}

// UpdateMap applies a partial update to a stored map
func (s *MapService) UpdateMap(ctx context.Context, id string, patch vsm.Patch) (*domain.ValueStreamMap, error) {
	patch.Connections = withConnectionIDs(patch.Connections)
	if err := ValidateContents(patch.Processes, patch.Connections); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, "update", EventMapUpdated, "", func(m domain.ValueStreamMap) (domain.ValueStreamMap, error) {
		return s.mutator.Update(m, patch), nil
	})
}

// DeleteMap removes a stored map
func (s *MapService) DeleteMap(ctx context.Context, id string) error {
	unlock := s.lock(id)
	defer unlock()

	m, err := s.repo.GetMap(ctx, id)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("map %s %w", id, ErrNotFound)
	}
	if err := s.repo.DeleteMap(ctx, id); err != nil {
		return err
	}

	s.eventBus.Publish(Event{Type: EventMapDeleted, Payload: MapPayload{MapID: id}})
	s.refreshCount(ctx)
	s.logger.Info("service: map deleted", "map_id", id)
	return nil
}

// AddProcess adds or replaces a process. An empty ID is generated.
func (s *MapService) AddProcess(ctx context.Context, id string, p domain.ProcessBlock) (*domain.ValueStreamMap, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := ValidateProcess(p); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, "add_process", EventProcessAdded, p.ID, func(m domain.ValueStreamMap) (domain.ValueStreamMap, error) {
		return s.mutator.AddProcess(m, p), nil
	})
}

// RemoveProcess removes a process together with its connections
func (s *MapService) RemoveProcess(ctx context.Context, id, processID string) (*domain.ValueStreamMap, error) {
	return s.mutate(ctx, id, "remove_process", EventProcessRemoved, processID, func(m domain.ValueStreamMap) (domain.ValueStreamMap, error) {
		if _, ok := m.Process(processID); !ok {
			return m, fmt.Errorf("process %s %w", processID, ErrNotFound)
		}
		return s.mutator.RemoveProcess(m, processID), nil
	})
}

// AddConnection adds or replaces a connection. An empty ID is derived from
// the endpoints.
func (s *MapService) AddConnection(ctx context.Context, id string, c domain.Connection) (*domain.ValueStreamMap, error) {
	if c.ID == "" {
		c.ID = c.GenerateID()
	}
	if err := ValidateConnection(c); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, "add_connection", EventConnectionAdded, c.ID, func(m domain.ValueStreamMap) (domain.ValueStreamMap, error) {
		return s.mutator.AddConnection(m, c), nil
	})
}

// RemoveConnection removes a connection
func (s *MapService) RemoveConnection(ctx context.Context, id, connectionID string) (*domain.ValueStreamMap, error) {
	return s.mutate(ctx, id, "remove_connection", EventConnectionRemoved, connectionID, func(m domain.ValueStreamMap) (domain.ValueStreamMap, error) {
		if _, ok := m.Connection(connectionID); !ok {
			return m, fmt.Errorf("connection %s %w", connectionID, ErrNotFound)
		}
		return s.mutator.RemoveConnection(m, connectionID), nil
	})
}

// Calculate runs the engine over unsaved input
func (s *MapService) Calculate(processes []domain.ProcessBlock, connections []domain.Connection) (*CalculationResult, error) {
	connections = withConnectionIDs(connections)
	if err := ValidateContents(processes, connections); err != nil {
		return nil, err
	}

	start := time.Now()
	r := engine.Calculate(processes, connections, s.mutator.Options)
	s.metrics.RecordRecalculation("calculate", time.Since(start))

	return &CalculationResult{
		Processes: engine.Project(processes, r),
		Metrics:   r.Metrics,
	}, nil
}

// Import parses a document and stores it, replacing any map with the same ID
func (s *MapService) Import(ctx context.Context, format string, r io.Reader) (*domain.ValueStreamMap, error) {
	c, err := codec.ForFormat(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	doc, err := c.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return s.store(ctx, doc)
}

// ImportFile loads a document from disk and stores it
func (s *MapService) ImportFile(ctx context.Context, path string) (*domain.ValueStreamMap, error) {
	doc, err := codec.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	m, err := s.store(ctx, doc)
	if err != nil {
		return nil, err
	}
	s.logger.Info("service: imported file", "path", path, "map_id", m.ID)
	return m, nil
}

// Export writes a stored map in the given format
func (s *MapService) Export(ctx context.Context, id, format string, w io.Writer) error {
	c, err := codec.ForFormat(format)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	m, err := s.GetMap(ctx, id)
	if err != nil {
		return err
	}
	return c.Export(m, w)
}

// SeedSample stores the sample map unless a map with its ID exists
func (s *MapService) SeedSample(ctx context.Context) (*domain.ValueStreamMap, error) {
	sample := vsm.Sample()

	unlock := s.lock(sample.ID)
	defer unlock()

	existing, err := s.repo.GetMap(ctx, sample.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	m := s.mutator.Create(sample.ID, sample.Title, sample.Processes, sample.Connections)
	if err := s.save(ctx, &m, Event{Type: EventMapCreated, Payload: payload(&m, "")}); err != nil {
		return nil, err
	}
	s.logger.Info("service: seeded sample map", "map_id", m.ID)
	return &m, nil
}

func (s *MapService) store(ctx context.Context, doc *domain.ValueStreamMap) (*domain.ValueStreamMap, error) {
	id := doc.ID
	if id == "" {
		id = uuid.NewString()
	}
	connections := withConnectionIDs(doc.Connections)
	if err := ValidateContents(doc.Processes, connections); err != nil {
		return nil, err
	}

	unlock := s.lock(id)
	defer unlock()

	start := time.Now()
	m := s.mutator.Create(id, doc.Title, doc.Processes, connections)
	s.metrics.RecordRecalculation("import", time.Since(start))

	if err := s.save(ctx, &m, Event{Type: EventMapImported, Payload: payload(&m, "")}); err != nil {
		return nil, err
	}
	return &m, nil
}

// mutate loads a map under its lock, applies fn and persists the result
func (s *MapService) mutate(ctx context.Context, id, operation string, eventType EventType, entityID string,
	fn func(domain.ValueStreamMap) (domain.ValueStreamMap, error)) (*domain.ValueStreamMap, error) {
	unlock := s.lock(id)
	defer unlock()

	m, err := s.repo.GetMap(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("map %s %w", id, ErrNotFound)
	}

	start := time.Now()
	updated, err := fn(*m)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordRecalculation(operation, time.Since(start))

	if err := s.save(ctx, &updated, Event{Type: eventType, Payload: payload(&updated, entityID)}); err != nil {
		return nil, err
	}
	s.logger.Debug("service: map changed", "map_id", id, "operation", operation)
	return &updated, nil
}

func (s *MapService) save(ctx context.Context, m *domain.ValueStreamMap, ev Event) error {
	if err := s.repo.SaveMap(ctx, m); err != nil {
		s.logger.Error("service: failed to save map", "map_id", m.ID, "err", err)
		return err
	}
	s.eventBus.Publish(ev)
	s.refreshCount(ctx)
	return nil
}

func (s *MapService) refreshCount(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	n, err := s.repo.CountMaps(ctx)
	if err != nil {
		s.logger.Warn("service: failed to count maps", "err", err)
		return
	}
	s.metrics.SetMapCount(n)
}

// lock serialises writers of a single map
func (s *MapService) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &mapLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

// withConnectionIDs returns a copy of in with missing IDs derived from the
// endpoints. Nil stays nil so patches keep their meaning.
func withConnectionIDs(in []domain.Connection) []domain.Connection {
	if in == nil {
		return nil
	}
	out := make([]domain.Connection, len(in))
	for i, c := range in {
		if c.ID == "" {
			c.ID = c.GenerateID()
		}
		out[i] = c
	}
	return out
}

func payload(m *domain.ValueStreamMap, entityID string) MapPayload {
	metrics := m.Metrics.Clone()
	return MapPayload{MapID: m.ID, EntityID: entityID, Metrics: &metrics}
}
