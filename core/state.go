package core

// State is a node of the executor state machine.
type State string

const (
	StateInit                 State = "init"
	StateInputGuardrailCheck  State = "input_guardrail_check"
	StateTurn                 State = "turn"
	StateToolDispatch         State = "tool_dispatch"
	StateHandoff              State = "handoff"
	StateFinalMessage         State = "final_message"
	StateOutputGuardrailCheck State = "output_guardrail_check"
	StateDone                 State = "done"
	StateHalted               State = "halted"
	StateFailed               State = "failed"
)

// IsTerminal reports whether s ends a run.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateHalted || s == StateFailed
}
