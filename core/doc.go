// Package core provides the foundational domain types shared by every layer of
// agentrail. It defines:
//
//   - Content / Part (role based conversation items, tool calls and responses)
//   - History (the run scoped, append only conversation transcript)
//   - RunContext / ToolContext (execution scope carrying the caller owned context cell)
//   - Event (the closed set of stream events emitted while a run advances)
//   - State, RunError and ErrorKind (the executor state machine and its failure taxonomy)
//   - GuardrailResult (the verdict record produced by input and output guardrails)
//
// The package has no knowledge of concrete agents, models or tools; higher layers
// depend on it, never the other way round.
package core
