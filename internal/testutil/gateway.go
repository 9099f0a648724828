package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/gateway"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
)

// ErrInjected is returned by FakeGateway for names marked as failing.
var ErrInjected = errors.New("injected failure")

// Call is one recorded gateway call.
type Call struct {
	Kind    models.CommandKind
	Name    string
	Start   gateway.StartPayload
	Payload map[string]any
}

// FakeGateway records every call and fails the ones configured to fail.
type FakeGateway struct {
	mu    sync.Mutex
	calls []Call
	fail  map[string]bool
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{fail: make(map[string]bool)}
}

// FailOn makes every call for name return ErrInjected.
func (g *FakeGateway) FailOn(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail[name] = true
}

func (g *FakeGateway) StartAlgorithm(_ context.Context, algorithm string, payload gateway.StartPayload) error {
	return g.record(Call{Kind: models.CommandStartAlgorithm, Name: algorithm, Start: payload})
}

func (g *FakeGateway) StopAndReset(_ context.Context, algorithm string) error {
	return g.record(Call{Kind: models.CommandStopAndReset, Name: algorithm})
}

func (g *FakeGateway) RunAction(_ context.Context, action string, payload map[string]any) error {
	return g.record(Call{Kind: models.CommandRunAction, Name: action, Payload: payload})
}

// Recorded returns the calls of the given kind in call order.
func (g *FakeGateway) Recorded(kind models.CommandKind) []Call {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []Call
	for _, c := range g.calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func (g *FakeGateway) record(c Call) error {
	g.mu.Lock()
	g.calls = append(g.calls, c)
	failing := g.fail[c.Name]
	g.mu.Unlock()

	if failing {
		return &gateway.Error{Op: c.Kind, Name: c.Name, Err: ErrInjected}
	}
	return nil
}
