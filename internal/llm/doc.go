// Package llm contains adapters for invoking large language models. It
// abstracts away provider-specific APIs and normalizes the transcript and
// tool-calling request/response lifecycle for use within the agent loop.
package llm
