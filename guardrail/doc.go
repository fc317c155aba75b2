// Package guardrail implements input and output guardrails.
//
// A Guardrail couples an Evaluator, which produces an application defined
// verdict for a candidate text, with an explicit tripwire rule that maps the
// verdict to a halt signal. Polarity is never inferred: a guardrail that must
// trip when a topic is NOT relevant says so in its tripwire function.
//
//	topic := guardrail.NewInputFunc("bank_topic",
//	    func(rc *core.RunContext, _ core.AgentInfo, text string) (TopicVerdict, error) { ... },
//	    func(v TopicVerdict) bool { return !v.IsBankRelated },
//	)
//
// AgentEvaluator runs a single-turn, tool-less sub-agent through the model
// collaborator and decodes its JSON answer into the verdict type.
package guardrail
