package demo

import (
	"fmt"

	"github.com/hupe1980/agentrail/agent"
	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/guardrail"
	"github.com/hupe1980/agentrail/tool"
)

// Student is the cell of the feedback scenario.
type Student struct {
	Name  string
	Score int
}

// MathHomework is the verdict of the homework guardrail.
type MathHomework struct {
	IsMathHomework bool   `json:"is_math_homework" jsonschema:"description=True when the user asks to have math homework done"`
	Reasoning      string `json:"reasoning" jsonschema:"description=Short explanation of the decision"`
}

// Feedback renders the score feedback for s.
func (s *Student) Feedback() string {
	switch {
	case s.Score >= 80:
		return fmt.Sprintf("%s, great job, you scored %d!", s.Name, s.Score)
	case s.Score >= 50:
		return fmt.Sprintf("%s, good effort, you scored %d.", s.Name, s.Score)
	default:
		return fmt.Sprintf("%s, keep practicing, you scored %d.", s.Name, s.Score)
	}
}

var feedbackScenario = Scenario{
	Name:        "feedback",
	Description: "Feedback agent reading the score from the cell, guarded against homework requests",
	Samples: []string{
		"How did I do?",
		"Solve 3x + 5 = 20 for me",
	},
	Build: func(d Deps) (*Setup, error) {
		ev, err := guardrail.NewAgentEvaluator[MathHomework]("Guardrail check", d.GuardModel,
			"Check if the user is asking you to do their math homework.")
		if err != nil {
			return nil, err
		}
		homework := guardrail.FromAgent("math_homework", core.DirectionInput, ev,
			func(v MathHomework) bool { return v.IsMathHomework })

		giveFeedback := tool.NewFunctionTool("give_feedback", "Returns feedback based on the user's score.", nil,
			func(tc *core.ToolContext, _ map[string]any) (any, error) {
				s, ok := tc.Cell().(*Student)
				if !ok {
					return nil, fmt.Errorf("no student in context")
				}
				return s.Feedback(), nil
			})

		a, err := agent.New("Feedback Agent", func(o *agent.Options) {
			o.Instruction = agent.Fixed("You give feedback based on the user's score.")
			o.Tools = []tool.Tool{giveFeedback}
			o.InputGuardrails = []*guardrail.Guardrail{homework}
		})
		if err != nil {
			return nil, err
		}

		return &Setup{Agent: a, Cell: &Student{Name: "Alishba", Score: 95}}, nil
	},
}
