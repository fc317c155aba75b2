// Package agent defines the immutable agent descriptor consumed by the runner.
//
// An Agent bundles:
//
//   - an Instruction, Fixed or Derived from the run's context cell
//   - a tool registry whose tools may be gated by capability predicates
//   - input and output guardrails
//   - handoff targets reachable through the transfer_to_agent directive
//   - model-call settings (temperature, tool choice, parallel tool calls)
//   - a continuation policy (ToolUseBehavior, StopAtTools) and a ToolErrorPolicy
//
// Agents are validated on construction and never change afterwards; derive
// variants with Clone. A set of mutating tools under parallel dispatch must be
// given an explicit MutatingOrder or New rejects the agent.
package agent
