package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valuestream/internal/domain"
)

const delta = 1e-9

// chain builds n processes spaced left to right, joined by normal connections
func chain(n int, processTime, waitTime float64) ([]domain.ProcessBlock, []domain.Connection) {
	processes := make([]domain.ProcessBlock, n)
	for i := range processes {
		id := fmt.Sprintf("p%d", i+1)
		processes[i] = domain.NewProcessBlock(id, "Step "+id, processTime).
			WithPosition(float64(100+150*i), 100)
	}
	var connections []domain.Connection
	for i := 1; i < n; i++ {
		connections = append(connections, domain.NewConnection(
			fmt.Sprintf("c%d", i), processes[i-1].ID, processes[i].ID, waitTime))
	}
	return processes, connections
}

func TestScenarioLinearNoRework(t *testing.T) {
	processes := []domain.ProcessBlock{
		domain.NewProcessBlock("A", "A", 10).WithCompleteAccurate(100),
		domain.NewProcessBlock("B", "B", 20).WithCompleteAccurate(100),
		domain.NewProcessBlock("C", "C", 30),
	}
	connections := []domain.Connection{
		domain.NewConnection("ab", "A", "B", 5),
		domain.NewConnection("bc", "B", "C", 10),
	}

	m := Calculate(processes, connections, Options{}).Metrics

	assert.Equal(t, map[string]float64{"A": 10, "B": 25, "C": 40}, m.CycleTimeByProcess)
	assert.Equal(t, 75.0, m.TotalLeadTime)
	assert.Equal(t, 0.0, m.TotalReworkTime)
	assert.Equal(t, 75.0, m.WorstCaseLeadTime)
	assert.InDelta(t, 60.0/75.0, m.ValueAddedRatio, delta)
}

func TestScenarioFourStepChain(t *testing.T) {
	processes, connections := chain(4, 10, 5)

	m := Calculate(processes, connections, Options{}).Metrics

	assert.Equal(t, 55.0, m.TotalLeadTime)
	assert.Equal(t, 0.0, m.TotalReworkTime)
	assert.Equal(t, 55.0, m.WorstCaseLeadTime)
}

func TestScenarioExplicitRework(t *testing.T) {
	tests := []struct {
		name          string
		target        string
		expectRework  float64
		expectWorst   float64
		reworkProcess string
	}{
		// rework wait 5 + p3 (10) + wait 5 + p4 (10). Quoted elsewhere as
		// 25 / 80, which omits the wait from p3 to p4.
		{"reject to previous step", "p3", 30, 85, "p3"},
		// rework wait 5 + p2 + 5 + p3 + 5 + p4. Quoted elsewhere as 45 / 95,
		// but 55 + 45 is 100.
		{"reject two steps back", "p2", 45, 100, "p2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processes, connections := chain(4, 10, 5)
			processes[3] = processes[3].WithCompleteAccurate(0)
			connections = append(connections, domain.NewReworkConnection("rw", "p4", tt.target, 5))

			r := Calculate(processes, connections, Options{})

			assert.Equal(t, 55.0, r.Metrics.TotalLeadTime)
			assert.InDelta(t, tt.expectRework, r.Metrics.TotalReworkTime, delta)
			assert.InDelta(t, tt.expectWorst, r.Metrics.WorstCaseLeadTime, delta)
			assert.InDelta(t, tt.expectRework, r.Metrics.ReworkCycleTimeByProcess[tt.reworkProcess], delta)
		})
	}
}

func TestScenarioIsolatedProcess(t *testing.T) {
	processes := []domain.ProcessBlock{
		domain.NewProcessBlock("solo", "Solo", 10).WithCompleteAccurate(90),
	}

	r := Calculate(processes, nil, Options{})

	assert.InDelta(t, 1.0, r.Metrics.ReworkCycleTimeByProcess["solo"], delta)
	assert.InDelta(t, 11.0, r.Metrics.WorstCaseLeadTime, delta)
	assert.Empty(t, r.Rework.Cleared)

	projected := Project(processes, r)
	require.NotNil(t, projected[0].Metrics.CompleteAccurate)
	assert.Equal(t, 90.0, *projected[0].Metrics.CompleteAccurate)
}

func TestImplicitRework(t *testing.T) {
	processes := []domain.ProcessBlock{
		domain.NewProcessBlock("step1", "Step 1", 10).WithPosition(100, 100).WithCompleteAccurate(90),
		domain.NewProcessBlock("step2", "Step 2", 20).WithPosition(250, 100).WithCompleteAccurate(80),
		domain.NewProcessBlock("step3", "Step 3", 30).WithPosition(400, 100).WithCompleteAccurate(70),
		domain.NewProcessBlock("step4", "Step 4", 5).WithPosition(550, 100),
	}
	connections := []domain.Connection{
		domain.NewConnection("conn1", "step1", "step2", 5),
		domain.NewConnection("conn2", "step2", "step3", 10),
		domain.NewConnection("conn3", "step3", "step4", 5),
	}

	m := Calculate(processes, connections, Options{}).Metrics

	assert.Equal(t, map[string]float64{"step1": 10, "step2": 25, "step3": 40, "step4": 10}, m.CycleTimeByProcess)
	assert.InDelta(t, 1.0, m.ReworkCycleTimeByProcess["step1"], delta)
	assert.InDelta(t, 5.0, m.ReworkCycleTimeByProcess["step2"], delta)
	assert.InDelta(t, 12.0, m.ReworkCycleTimeByProcess["step3"], delta)
	assert.Equal(t, 0.0, m.ReworkCycleTimeByProcess["step4"])
	assert.Equal(t, 85.0, m.TotalLeadTime)
	assert.InDelta(t, 18.0, m.TotalReworkTime, delta)
	assert.InDelta(t, 103.0, m.WorstCaseLeadTime, delta)
}

func TestExplicitReworkUsesRejectingRate(t *testing.T) {
	processes := []domain.ProcessBlock{
		domain.NewProcessBlock("step1", "Step 1", 10).WithPosition(100, 100).WithCompleteAccurate(90),
		domain.NewProcessBlock("step2", "Step 2", 20).WithPosition(250, 100).WithCompleteAccurate(80),
		domain.NewProcessBlock("step3", "Step 3", 30).WithPosition(400, 100).WithCompleteAccurate(70),
		domain.NewProcessBlock("step4", "Step 4", 10).WithPosition(550, 100),
	}
	connections := []domain.Connection{
		domain.NewConnection("conn1", "step1", "step2", 5),
		domain.NewConnection("conn2", "step2", "step3", 10),
		domain.NewConnection("conn3", "step3", "step4", 10),
		domain.NewReworkConnection("rework1", "step3", "step1", 15),
	}

	m := Calculate(processes, connections, Options{}).Metrics

	// 0.3 * (15 + 10 + 5 + 20 + 10 + 30)
	assert.InDelta(t, 27.0, m.ReworkCycleTimeByProcess["step1"], delta)
	assert.InDelta(t, 5.0, m.ReworkCycleTimeByProcess["step2"], delta)
	assert.Equal(t, 0.0, m.ReworkCycleTimeByProcess["step3"], "rejecting process has no implicit rework")
	assert.Equal(t, 95.0, m.TotalLeadTime)
	assert.InDelta(t, 32.0, m.TotalReworkTime, delta)
	assert.InDelta(t, 127.0, m.WorstCaseLeadTime, delta)
}

func TestMultipleReworkEdgesSum(t *testing.T) {
	processes, connections := chain(3, 10, 0)
	processes[1] = processes[1].WithCompleteAccurate(50)
	processes[2] = processes[2].WithCompleteAccurate(0)
	connections = append(connections,
		domain.NewReworkConnection("r1", "p2", "p1", 0),
		domain.NewReworkConnection("r2", "p3", "p1", 0),
	)

	m := Calculate(processes, connections, Options{}).Metrics

	// p2 rejects half of (p1 + p2), p3 rejects all of (p1 + p2 + p3)
	assert.InDelta(t, 10.0+30.0, m.ReworkCycleTimeByProcess["p1"], delta)
}

func TestImplicitReworkPicksRightmostPredecessor(t *testing.T) {
	processes := []domain.ProcessBlock{
		domain.NewProcessBlock("left", "Left", 1).WithPosition(0, 0),
		domain.NewProcessBlock("right", "Right", 1).WithPosition(200, 0),
		domain.NewProcessBlock("merge", "Merge", 10).WithPosition(400, 0).WithCompleteAccurate(50),
		domain.NewProcessBlock("end", "End", 1).WithPosition(600, 0),
	}
	connections := []domain.Connection{
		domain.NewConnection("lm", "left", "merge", 2),
		domain.NewConnection("rm", "right", "merge", 8),
		domain.NewConnection("me", "merge", "end", 0),
	}

	m := Calculate(processes, connections, Options{}).Metrics

	assert.InDelta(t, (8+10)*0.5, m.ReworkCycleTimeByProcess["merge"], delta)
}

func TestNormalCycleTerminates(t *testing.T) {
	processes := []domain.ProcessBlock{
		domain.NewProcessBlock("A", "A", 10).WithCompleteAccurate(80),
		domain.NewProcessBlock("B", "B", 20).WithCompleteAccurate(50),
		domain.NewProcessBlock("C", "C", 5).WithCompleteAccurate(0),
	}
	connections := []domain.Connection{
		domain.NewConnection("ab", "A", "B", 1),
		domain.NewConnection("ba", "B", "A", 2),
		domain.NewReworkConnection("ca", "C", "A", 3),
	}

	r := Calculate(processes, connections, Options{})

	// A: 10 + 2, B: 20 + 1, C: 5
	assert.Equal(t, 38.0, r.Metrics.TotalLeadTime)
	// walk A -> B never reaches C, and the branch back into A adds nothing,
	// not even its wait: 3 + 10 + 1 + 20
	assert.InDelta(t, 34.0, r.Metrics.ReworkCycleTimeByProcess["A"], delta)
	assert.InDelta(t, (1+20)*0.5, r.Metrics.ReworkCycleTimeByProcess["B"], delta)
	assert.Empty(t, r.Rework.Cleared)
}

func TestRevisitedBranchFallsBackToNextRoute(t *testing.T) {
	processes := []domain.ProcessBlock{
		domain.NewProcessBlock("A", "A", 1),
		domain.NewProcessBlock("B", "B", 2),
		domain.NewProcessBlock("C", "C", 4).WithCompleteAccurate(0),
	}
	connections := []domain.Connection{
		domain.NewConnection("ba", "B", "A", 100),
		domain.NewConnection("ab", "A", "B", 10),
		domain.NewConnection("bc", "B", "C", 20),
		domain.NewReworkConnection("ca", "C", "A", 0),
	}

	r := Calculate(processes, connections, Options{})

	// B's first branch loops back to A and is skipped: 1 + 10 + 2 + 20 + 4
	assert.InDelta(t, 37.0, r.Metrics.ReworkCycleTimeByProcess["A"], delta)
}

func TestBackwardConnectionInferredAsRework(t *testing.T) {
	processes, connections := chain(3, 10, 5)
	processes[2] = processes[2].WithCompleteAccurate(50)
	connections = append(connections, domain.NewConnection("back", "p3", "p2", 5))

	t.Run("default infers rework from layout", func(t *testing.T) {
		r := Calculate(processes, connections, Options{})

		assert.Equal(t, map[string]float64{"p1": 10, "p2": 15, "p3": 15}, r.Metrics.CycleTimeByProcess)
		assert.Equal(t, 40.0, r.Metrics.TotalLeadTime)
		// (5 + 10 + 5 + 10) * 0.5
		assert.InDelta(t, 15.0, r.Metrics.ReworkCycleTimeByProcess["p2"], delta)
		assert.InDelta(t, 55.0, r.Metrics.WorstCaseLeadTime, delta)

		back := r.Graph.IncomingRework("p2")
		require.Len(t, back, 1)
		assert.True(t, back[0].Inferred)
	})

	t.Run("explicit only keeps it as flow", func(t *testing.T) {
		r := Calculate(processes, connections, Options{ExplicitReworkOnly: true})

		assert.Equal(t, 20.0, r.Metrics.CycleTimeByProcess["p2"])
		assert.Equal(t, 45.0, r.Metrics.TotalLeadTime)
	})
}

func TestDanglingConnectionsIgnored(t *testing.T) {
	processes, connections := chain(2, 10, 5)
	connections = append(connections,
		domain.NewConnection("ghost-in", "ghost", "p1", 100),
		domain.NewConnection("ghost-out", "p2", "ghost", 100),
		domain.NewReworkConnection("ghost-rw", "ghost", "p1", 100),
	)

	r := Calculate(processes, connections, Options{})

	assert.Equal(t, 25.0, r.Metrics.TotalLeadTime)
	assert.Equal(t, 0.0, r.Metrics.TotalReworkTime)
	assert.Len(t, r.Graph.Connections(), 1)
	assert.True(t, r.Graph.IsTerminal("p2"))
}

func TestProjectClearsTerminalOnly(t *testing.T) {
	processes, connections := chain(3, 10, 5)
	for i := range processes {
		processes[i] = processes[i].WithCompleteAccurate(90)
	}

	r := Calculate(processes, connections, Options{})
	projected := Project(processes, r)

	require.Len(t, projected, 3)
	assert.NotNil(t, projected[0].Metrics.CompleteAccurate)
	assert.NotNil(t, projected[1].Metrics.CompleteAccurate)
	assert.Nil(t, projected[2].Metrics.CompleteAccurate)
	assert.Equal(t, 0.0, r.Metrics.ReworkCycleTimeByProcess["p3"])

	require.NotNil(t, projected[1].Metrics.CycleTime)
	assert.Equal(t, 15.0, *projected[1].Metrics.CycleTime)
	require.NotNil(t, projected[1].Metrics.ReworkCycleTime)
	assert.InDelta(t, 1.5, *projected[1].Metrics.ReworkCycleTime, delta)

	// caller values untouched
	for _, p := range processes {
		require.NotNil(t, p.Metrics.CompleteAccurate)
		assert.Nil(t, p.Metrics.CycleTime)
		assert.Nil(t, p.Metrics.ReworkCycleTime)
	}
}

func TestAggregateAverageEqualsWorstCase(t *testing.T) {
	processes := []domain.ProcessBlock{
		domain.NewProcessBlock("a", "A", 4),
		domain.NewProcessBlock("b", "B", 6),
	}
	cycle := map[string]float64{"a": 4, "b": 10}
	rework := map[string]float64{"a": 0.5, "b": 2}

	m := Aggregate(processes, cycle, rework)

	assert.Equal(t, 14.0, m.TotalLeadTime)
	assert.Equal(t, 10.0, m.TotalValueAddedTime)
	assert.InDelta(t, 10.0/14.0, m.ValueAddedRatio, delta)
	assert.Equal(t, 2.5, m.TotalReworkTime)
	assert.Equal(t, 16.5, m.WorstCaseLeadTime)
	assert.Equal(t, m.WorstCaseLeadTime, m.AverageLeadTime)
}

func TestAggregateEmpty(t *testing.T) {
	m := Aggregate(nil, nil, nil)

	assert.Equal(t, 0.0, m.TotalLeadTime)
	assert.Equal(t, 0.0, m.ValueAddedRatio)
	assert.NotNil(t, m.CycleTimeByProcess)
	assert.NotNil(t, m.ReworkCycleTimeByProcess)
}
