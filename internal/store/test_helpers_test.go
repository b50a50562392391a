package store

import (
	"context"
	"sync"
	"testing"

	"github.com/viniciuscfreitas/gtdflow/internal/bus"
	"github.com/viniciuscfreitas/gtdflow/internal/record"
	"github.com/viniciuscfreitas/gtdflow/internal/substrate"
	"github.com/viniciuscfreitas/gtdflow/internal/testutil"
)

type fixture struct {
	sub    *substrate.Memory
	bus    *bus.Bus
	clock  *testutil.FakeClock
	events *[]bus.Event
	mu     sync.Mutex
	triage *Store[record.TriageTask, *record.TriageTask]
}

// newFixture creates a triage store over an in-memory substrate with a
// fake clock, sequential IDs and a global event recorder.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		sub:    substrate.NewMemory(),
		bus:    bus.New(),
		clock:  testutil.NewFakeClock(testutil.DefaultEpoch),
		events: &[]bus.Event{},
	}
	f.bus.SubscribeGlobal(func(ctx context.Context, ev bus.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		*f.events = append(*f.events, ev)
		return nil
	})
	opts = append([]Option{
		WithClock(f.clock),
		WithIDGenerator(testutil.NewSequentialIDs("t")),
	}, opts...)
	f.triage = New[record.TriageTask](f.sub, f.bus, opts...)
	return f
}

// createTestTask creates a minimal next-action triage task.
func createTestTask(t *testing.T, s *Store[record.TriageTask, *record.TriageTask], title string) record.TriageTask {
	t.Helper()
	task, err := s.Create(context.Background(), record.TriageTask{
		Title:  title,
		Kind:   record.TriageNext,
		Status: record.TriageActive,
	})
	if err != nil {
		t.Fatalf("Create(%q) failed: %v", title, err)
	}
	return task
}
