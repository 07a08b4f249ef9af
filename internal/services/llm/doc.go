// Package llm provides an OpenRouter chat client used as a text provider and
// the JSON decoding helpers shared by every text provider.
//
// Client.Generate sends optional system and user prompts and returns the first
// non-empty completion. Failures carry services markers: HTTP 408/429/5xx and
// network errors are ErrProvider (retryable), 401/403 ErrConfiguration, and
// blank completions ErrEmptyResult. The client never retries on its own; the
// orchestrator owns retry policy.
//
// DecodeJSON tolerates the usual model quirks (code fences, leading prose) when
// parsing structured responses such as book outlines.
package llm
