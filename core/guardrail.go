package core

// Direction tells whether a guardrail gates the run input or the final output.
type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// GuardrailResult is the outcome of one guardrail evaluation: the application
// defined verdict plus the tripwire derived from it.
type GuardrailResult struct {
	Guardrail         string    `json:"guardrail"`
	Direction         Direction `json:"direction"`
	Agent             string    `json:"agent"`
	OutputInfo        any       `json:"output_info,omitempty"`
	TripwireTriggered bool      `json:"tripwire_triggered"`
}
