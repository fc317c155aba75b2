// Package model defines the provider-agnostic model-call collaborator used by
// the agentrail runtime.
//
// The runtime depends only on the Model interface: given instructions, the
// currently visible tools, the conversation history and call settings, a
// model produces (optionally streamed) assistant content made of text and
// function call parts. Provider adapters live in the subpackages openai,
// anthropic and gemini. MockModel is a scripted in-memory implementation for
// tests and demos.
package model
