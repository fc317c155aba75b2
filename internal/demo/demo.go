// Package demo holds the example scenarios served by the agentrail CLI. Each
// scenario wires agents, gated tools, guardrails and handoffs around its own
// context cell.
package demo

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/agentrail/agent"
	"github.com/hupe1980/agentrail/model"
	"github.com/hupe1980/agentrail/tool"
)

// Deps are the collaborators a scenario is built with.
type Deps struct {
	// GuardModel backs the guardrail sub-agents. Agents themselves carry no
	// model and use the runner default.
	GuardModel model.Model
}

// Setup is a built scenario: the starting agent and the cell passed to Run.
type Setup struct {
	Agent *agent.Agent
	Cell  any
	// Prepare, when set, adjusts the cell for the next input.
	Prepare func(input string)
}

// Scenario describes one runnable example.
type Scenario struct {
	Name        string
	Description string
	// Samples are example inputs, the last one usually trips a guardrail.
	Samples []string
	Build   func(d Deps) (*Setup, error)
}

// ErrUnknownScenario is returned by Lookup.
var ErrUnknownScenario = errors.New("unknown scenario")

var scenarios = []Scenario{
	bankScenario,
	libraryScenario,
	supportScenario,
	feedbackScenario,
	miniBankScenario,
}

// Scenarios lists the available scenarios sorted by name.
func Scenarios() []Scenario {
	out := slices.Clone(scenarios)
	slices.SortFunc(out, func(a, b Scenario) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out
}

// Lookup returns the scenario called name.
func Lookup(name string) (Scenario, error) {
	for _, s := range scenarios {
		if s.Name == name {
			return s, nil
		}
	}
	return Scenario{}, fmt.Errorf("%w %q", ErrUnknownScenario, name)
}

func mustTool(t *tool.FunctionTool, err error) tool.Tool {
	if err != nil {
		panic(err)
	}
	return t
}
