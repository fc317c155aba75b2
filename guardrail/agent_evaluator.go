package guardrail

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/internal/util"
	"github.com/hupe1980/agentrail/model"
)

// AgentEvaluatorOptions configure an AgentEvaluator.
type AgentEvaluatorOptions struct {
	// Settings are the model-call settings of the sub-agent.
	Settings model.Settings
	// OutputName labels the structured output for providers that need it.
	OutputName string
}

// AgentEvaluator classifies text with a single-turn, tool-less sub-agent and
// decodes its JSON answer into V. The sub-agent sees only the candidate text,
// never the run's history or context cell.
type AgentEvaluator[V any] struct {
	name         string
	model        model.Model
	instructions string
	schema       map[string]any
	opts         AgentEvaluatorOptions
}

// NewAgentEvaluator creates an evaluator backed by m. The verdict schema is
// reflected from V.
//
//	type MathHomework struct {
//	    IsMathHomework bool   `json:"is_math_homework"`
//	    Reasoning      string `json:"reasoning"`
//	}
//	ev, err := guardrail.NewAgentEvaluator[MathHomework]("Guardrail check", m,
//	    "Check if the user is asking you to do their math homework.")
func NewAgentEvaluator[V any](
	name string,
	m model.Model,
	instructions string,
	optFns ...func(o *AgentEvaluatorOptions),
) (*AgentEvaluator[V], error) {
	if m == nil {
		return nil, fmt.Errorf("guardrail agent %q: model is required", name)
	}
	schema, err := util.ReflectSchema(new(V))
	if err != nil {
		return nil, fmt.Errorf("guardrail agent %q: %w", name, err)
	}
	opts := AgentEvaluatorOptions{OutputName: schemaName(name)}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &AgentEvaluator[V]{
		name:         name,
		model:        m,
		instructions: instructions,
		schema:       schema,
		opts:         opts,
	}, nil
}

// Evaluate implements Evaluator. The verdict is a V.
func (e *AgentEvaluator[V]) Evaluate(rc *core.RunContext, agent core.AgentInfo, text string) (any, error) {
	return e.EvaluateTyped(rc, agent, text)
}

// EvaluateTyped runs the sub-agent and returns the decoded verdict.
func (e *AgentEvaluator[V]) EvaluateTyped(rc *core.RunContext, _ core.AgentInfo, text string) (V, error) {
	var verdict V

	req := model.Request{
		Instructions: e.instructions,
		Contents:     []core.Content{core.NewTextContent(core.RoleUser, text)},
		Settings:     e.opts.Settings,
		OutputSchema: e.schema,
		OutputName:   e.opts.OutputName,
	}

	resp, err := model.Collect(rc.Context, e.model, req, nil)
	if err != nil {
		return verdict, fmt.Errorf("guardrail agent %q: %w", e.name, err)
	}

	if err := DecodeVerdict(resp.Content.Text(), &verdict); err != nil {
		return verdict, fmt.Errorf("guardrail agent %q: %w", e.name, err)
	}

	rc.LogDebug("guardrail.agent.verdict", "guardrail_agent", e.name, "model", e.model.Info().Name)

	return verdict, nil
}

// DecodeVerdict parses a JSON object from model text, tolerating surrounding
// markdown code fences and prose.
func DecodeVerdict(text string, target any) error {
	raw := strings.TrimSpace(text)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
		raw = strings.TrimSpace(raw)
	}
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	if raw == "" {
		return fmt.Errorf("empty verdict")
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return fmt.Errorf("decode verdict: %w", err)
	}
	return nil
}

func schemaName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "verdict"
	}
	return b.String()
}

// FromAgent builds a guardrail whose verdict comes from ev.
func FromAgent[V any](name string, direction core.Direction, ev *AgentEvaluator[V], tripwire func(V) bool) *Guardrail {
	return NewTyped(name, direction, ev.EvaluateTyped, tripwire)
}
