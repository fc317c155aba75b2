// Package runner implements the agent executor.
//
// A Runner drives one run through the state machine
//
//	Init → InputGuardrailCheck → Turn → {ToolDispatch | Handoff | FinalMessage}
//	     → OutputGuardrailCheck → Done
//
// with Halted and Failed as terminal states reachable from every non-terminal
// state. Run blocks and returns a *Result; RunStreamed returns a *Stream whose
// events mirror every transition in causal order.
//
// # Responsibilities
//   - Input guardrails of the starting agent, once, before any model call
//   - Per-turn tool visibility, instruction resolution and model invocation
//   - Tool dispatch (sequential, or parallel when the agent enables it)
//   - Handoff resolution with cycle detection
//   - Output guardrails of the agent that produced the final message
//   - Cancellation and deadlines checked at every transition
//   - Tracing and metrics through the observability package
//
// A Runner holds no per-run state; Run and RunStreamed are safe for
// concurrent use. The context cell is the caller's; runs sharing no cell need
// no coordination.
package runner
