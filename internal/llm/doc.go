// Package llm contains adapters for invoking generative-text providers. It
// abstracts away provider-specific APIs and normalizes request/response
// lifecycles for the report generator. Concrete clients live in the gemini
// and openai subpackages; the provider is selected at startup by config.
package llm
