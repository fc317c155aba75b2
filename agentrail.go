// Package agentrail provides a high-level façade over the runner for
// applications that address agents by name. Most applications interact with
// this package by:
//  1. Creating an AgentRail via New() with a default model and limits
//  2. Registering the starting agents of their flows
//  3. Invoking an agent by name, streamed (Invoke) or synchronously (InvokeSync)
//
// The façade delegates execution to runner.Runner. Handoff targets do not
// need to be registered; they are reached through the starting agent.
package agentrail

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentrail/agent"
	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/runner"
)

// Options configures the AgentRail instance. It is the runner configuration.
type Options = runner.Options

// AgentRail is the high-level façade aggregating a runner and named agents.
type AgentRail struct {
	runner *runner.Runner

	mu     sync.RWMutex
	agents map[string]*agent.Agent
}

// New creates a new AgentRail instance with optional runner overrides.
func New(optFns ...func(o *Options)) *AgentRail {
	return &AgentRail{
		runner: runner.New(optFns...),
		agents: make(map[string]*agent.Agent),
	}
}

// RegisterAgent makes a available to Invoke under its name, replacing any
// agent registered with the same name.
func (m *AgentRail) RegisterAgent(a *agent.Agent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[a.Name()] = a
}

// Agent returns the registered agent called name.
func (m *AgentRail) Agent(name string) (*agent.Agent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[name]
	return a, ok
}

// Runner exposes the underlying runner.
func (m *AgentRail) Runner() *runner.Runner { return m.runner }

// Invoke starts a streamed run of the agent called agentName.
func (m *AgentRail) Invoke(
	ctx context.Context,
	agentName string,
	input string,
	cell any,
	optFns ...runner.RunOption,
) (*runner.Stream, error) {
	a, ok := m.Agent(agentName)
	if !ok {
		return nil, fmt.Errorf("agent %q not registered", agentName)
	}
	return m.runner.RunStreamed(ctx, a, input, cell, optFns...), nil
}

// InvokeSync runs the agent called agentName to completion, collecting the
// events it emitted. The returned error is Result.Err: nil for a done run,
// a *core.TripwireError for a halted one and a *core.RunError otherwise.
func (m *AgentRail) InvokeSync(
	ctx context.Context,
	agentName string,
	input string,
	cell any,
	optFns ...runner.RunOption,
) (*runner.Result, []core.Event, error) {
	s, err := m.Invoke(ctx, agentName, input, cell, optFns...)
	if err != nil {
		return nil, nil, err
	}

	var events []core.Event
	for ev := range s.Events() {
		events = append(events, ev)
	}

	res := s.Wait()

	return res, events, res.Err()
}

// Cancel cancels a running invocation by run ID.
func (m *AgentRail) Cancel(runID string) error { return m.runner.Cancel(runID) }
