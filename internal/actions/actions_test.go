package actions

import (
	"io"
	"log/slog"
	"testing"
)

type recordingConnector struct {
	seen []Action
}

func (r *recordingConnector) Connect(a Action) {
	r.seen = append(r.seen, a)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatchFansOutToAllConnectors(t *testing.T) {
	a := &recordingConnector{}
	b := &recordingConnector{}
	d := NewDispatcher(testLogger(), a, b)

	d.Dispatch(ShareLocation)

	for i, c := range []*recordingConnector{a, b} {
		if len(c.seen) != 1 || c.seen[0] != ShareLocation {
			t.Fatalf("connector %d saw %v, want [%q]", i, c.seen, ShareLocation)
		}
	}
}

func TestDispatchPreservesRegistrationOrder(t *testing.T) {
	var order []int
	d := NewDispatcher(testLogger())
	for i := 0; i < 3; i++ {
		i := i
		d.Register(connectorFunc(func(Action) { order = append(order, i) }))
	}

	d.Dispatch(Idle)

	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("dispatch order %v, want [0 1 2]", order)
	}
}

type connectorFunc func(Action)

func (f connectorFunc) Connect(a Action) { f(a) }
