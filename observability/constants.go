// Package observability provides OpenTelemetry tracing and Prometheus metrics
// for agent runs.
//
// Both the Tracer and the Metrics are nil-safe: a nil *Tracer produces no-op
// spans and a nil *Metrics records nothing, so callers never branch on
// whether observability is enabled.
//
// Span layout of one run:
//
//	agentrail.run
//	├── agentrail.guardrail   (one per input / output guardrail)
//	├── agentrail.turn        (one per model call)
//	├── agentrail.tool        (one per dispatched tool call)
//	└── agentrail.handoff
package observability

const (
	AttrServiceName    = "service.name"
	AttrServiceVersion = "service.version"

	AttrGenAISystem            = "gen_ai.system"
	AttrGenAIRequestModel      = "gen_ai.request.model"
	AttrGenAIUsageInputTokens  = "gen_ai.usage.input_tokens"
	AttrGenAIUsageOutputTokens = "gen_ai.usage.output_tokens"

	AttrRunID          = "agentrail.run.id"
	AttrRunStatus      = "agentrail.run.status"
	AttrAgentName      = "agentrail.agent.name"
	AttrTurn           = "agentrail.turn"
	AttrToolName       = "agentrail.tool.name"
	AttrToolCallID     = "agentrail.tool.call_id"
	AttrGuardrailName  = "agentrail.guardrail.name"
	AttrGuardrailDir   = "agentrail.guardrail.direction"
	AttrGuardrailCount = "agentrail.guardrail.count"
	AttrTripwire       = "agentrail.guardrail.tripwire_triggered"
	AttrHandoffFrom    = "agentrail.handoff.from"
	AttrHandoffTo      = "agentrail.handoff.to"
	AttrErrorKind      = "agentrail.error.kind"
	AttrOutcome        = "agentrail.turn.outcome"
	AttrVisibleTools   = "agentrail.turn.visible_tools"
	AttrFinishReason   = "gen_ai.response.finish_reasons"

	SpanRun       = "agentrail.run"
	SpanTurn      = "agentrail.turn"
	SpanTool      = "agentrail.tool"
	SpanGuardrail = "agentrail.guardrail"
	SpanHandoff   = "agentrail.handoff"

	DefaultServiceName = "agentrail"
)
