package core

// AgentInfo is the read-only view of an agent descriptor handed to capability
// predicates, guardrail evaluators and derived instructions.
type AgentInfo struct {
	Name        string
	Description string
}
