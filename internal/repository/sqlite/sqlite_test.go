package sqlite

import (
	"context"
	"database/sql"
	"reflect"
	"testing"
	"time"

	"valuestream/internal/core/vsm"
	"valuestream/internal/domain"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestRepo creates an in-memory SQLite repository for testing
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

// assertNoError fails the test if err is not nil
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// assertEqual fails the test if expected != actual
func assertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}

// ============================================================================
// Helper Function Tests
// ============================================================================

func TestNullConversions(t *testing.T) {
	if got := nullToString(sql.NullString{}); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
	if got := nullToString(sql.NullString{String: "x", Valid: true}); got != "x" {
		t.Errorf("expected x, got %q", got)
	}
	if stringToNull("").Valid {
		t.Error("expected empty string to be NULL")
	}
	if got := nullToFloatPtr(sql.NullFloat64{}); got != nil {
		t.Errorf("expected nil, got %v", *got)
	}
	if got := nullToFloatPtr(sql.NullFloat64{Float64: 85, Valid: true}); got == nil || *got != 85 {
		t.Errorf("expected 85, got %v", got)
	}
	if floatPtrToNull(nil).Valid {
		t.Error("expected nil pointer to be NULL")
	}
}

func TestTimeRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	if got := parseTime(formatTime(now)); !got.Equal(now) {
		t.Errorf("expected %v, got %v", now, got)
	}
	if !parseTime("garbage").IsZero() {
		t.Error("expected zero time for invalid input")
	}
	if formatTime(now) >= formatTime(now.Add(time.Nanosecond*100)) {
		t.Error("expected formatted times to sort lexically")
	}
}

func TestMetricsSnapshot(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		m := vsm.Sample().Metrics

		blob, err := encodeMetrics(m)
		assertNoError(t, err)

		got, err := decodeMetrics(blob)
		assertNoError(t, err)
		assertEqual(t, m, got)
	})

	t.Run("empty blob", func(t *testing.T) {
		got, err := decodeMetrics(nil)
		assertNoError(t, err)
		if got.CycleTimeByProcess == nil {
			t.Error("expected initialized maps")
		}
	})

	t.Run("corrupt blob", func(t *testing.T) {
		if _, err := decodeMetrics([]byte{0xff, 0xff, 0xff}); err == nil {
			t.Error("expected error for corrupt blob")
		}
	})
}

// ============================================================================
// Repository Tests
// ============================================================================

func TestSaveAndGetMap(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sample := vsm.Sample()
	sample.Processes[0].Description = "Incoming ticket"
	assertNoError(t, repo.SaveMap(ctx, &sample))

	got, err := repo.GetMap(ctx, sample.ID)
	assertNoError(t, err)
	if got == nil {
		t.Fatal("expected map, got nil")
	}

	assertEqual(t, sample, *got)
}

func TestGetMapMissing(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.GetMap(context.Background(), "nope")
	assertNoError(t, err)
	if got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestSaveMapReplacesChildren(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	m := vsm.Sample()
	assertNoError(t, repo.SaveMap(ctx, &m))

	smaller := vsm.RemoveProcess(m, "process5")
	smaller.Title = "Trimmed"
	assertNoError(t, repo.SaveMap(ctx, &smaller))

	got, err := repo.GetMap(ctx, m.ID)
	assertNoError(t, err)

	assertEqual(t, "Trimmed", got.Title)
	assertEqual(t, 4, len(got.Processes))
	assertEqual(t, 4, len(got.Connections))
	assertEqual(t, smaller.Metrics, got.Metrics)
}

func TestSavePreservesOrderAndNulls(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	m := vsm.Create("ordered", "Ordered",
		[]domain.ProcessBlock{
			domain.NewProcessBlock("z", "Z", 1),
			domain.NewProcessBlock("a", "A", 2).WithCompleteAccurate(0),
			domain.NewProcessBlock("m", "M", 3),
		},
		[]domain.Connection{
			domain.NewReworkConnection("r", "m", "z", 1),
			domain.NewConnection("dangling", "z", "ghost", 2),
		},
	)
	assertNoError(t, repo.SaveMap(ctx, &m))

	got, err := repo.GetMap(ctx, "ordered")
	assertNoError(t, err)

	ids := []string{got.Processes[0].ID, got.Processes[1].ID, got.Processes[2].ID}
	assertEqual(t, []string{"z", "a", "m"}, ids)

	if got.Processes[0].Metrics.CompleteAccurate != nil {
		t.Error("expected NULL complete_accurate to stay nil")
	}
	if ca := got.Processes[1].Metrics.CompleteAccurate; ca == nil || *ca != 0 {
		t.Errorf("expected complete_accurate 0 to survive, got %v", ca)
	}
	if !got.Connections[0].IsRework {
		t.Error("expected rework flag to survive")
	}
	assertEqual(t, "ghost", got.Connections[1].TargetID)
}

func TestListAndCountMaps(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	list, err := repo.ListMaps(ctx)
	assertNoError(t, err)
	assertEqual(t, 0, len(list))

	sample := vsm.Sample()
	assertNoError(t, repo.SaveMap(ctx, &sample))
	second := vsm.Create("second", "Second", []domain.ProcessBlock{domain.NewProcessBlock("a", "A", 5)}, nil)
	assertNoError(t, repo.SaveMap(ctx, &second))

	n, err := repo.CountMaps(ctx)
	assertNoError(t, err)
	assertEqual(t, 2, n)

	list, err = repo.ListMaps(ctx)
	assertNoError(t, err)
	assertEqual(t, 2, len(list))

	byID := map[string]domain.MapSummary{}
	for _, s := range list {
		byID[s.ID] = s
	}

	s := byID["vsm1"]
	assertEqual(t, 5, s.ProcessCount)
	assertEqual(t, 5, s.ConnectionCount)
	assertEqual(t, 210.0, s.TotalLeadTime)
	if s.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be set")
	}
	assertEqual(t, 1, byID["second"].ProcessCount)
}

func TestDeleteMapCascades(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sample := vsm.Sample()
	assertNoError(t, repo.SaveMap(ctx, &sample))
	assertNoError(t, repo.DeleteMap(ctx, sample.ID))

	got, err := repo.GetMap(ctx, sample.ID)
	assertNoError(t, err)
	if got != nil {
		t.Error("expected map to be deleted")
	}

	var orphans int
	err = repo.db.QueryRow(`SELECT (SELECT COUNT(*) FROM processes) + (SELECT COUNT(*) FROM connections)`).Scan(&orphans)
	assertNoError(t, err)
	assertEqual(t, 0, orphans)

	// deleting again is not an error
	assertNoError(t, repo.DeleteMap(ctx, sample.ID))
}

func TestDSN(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{":memory:", ":memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
		{"maps.db", "maps.db?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
		{"file:maps.db?cache=shared", "file:maps.db?cache=shared&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assertEqual(t, tt.expected, dsn(tt.path))
		})
	}
}
