package vsm

import "valuestream/internal/domain"

const (
	sampleSpacing = 250
	sampleStartX  = 50
	sampleY       = 100
)

// Sample returns a five-step software delivery stream with one rework loop
// from testing back to development
func Sample() domain.ValueStreamMap {
	steps := []struct {
		id, name string
		pt, ca   float64
	}{
		{"process1", "Customer Request", 10, 100},
		{"process2", "Analysis", 30, 90},
		{"process3", "Development", 60, 85},
		{"process4", "Testing", 40, 95},
		{"process5", "Deployment", 20, 98},
	}

	processes := make([]domain.ProcessBlock, len(steps))
	for i, s := range steps {
		processes[i] = domain.NewProcessBlock(s.id, s.name, s.pt).
			WithPosition(float64(sampleStartX+sampleSpacing*i), sampleY).
			WithCompleteAccurate(s.ca)
	}

	connections := []domain.Connection{
		domain.NewConnection("conn1", "process1", "process2", 5),
		domain.NewConnection("conn2", "process2", "process3", 15),
		domain.NewConnection("conn3", "process3", "process4", 20),
		domain.NewConnection("conn4", "process4", "process5", 10),
		domain.NewReworkConnection("rework1", "process4", "process3", 5),
	}

	return Create("vsm1", "Software Development Value Stream", processes, connections)
}
