// Package llm provides the completion clients used by the pipeline stages.
//
// Every client implements Completer: one system prompt plus one user prompt in,
// one text out. Completion calls are single attempt; a failed call surfaces
// ErrTransport or ErrMalformedResponse and the caller decides whether a local
// fallback applies.
//
// Providers:
//   - gateway: an OpenAI chat-format HTTP endpoint posted to directly, as used
//     by the internal model gateway
//   - openai: langchaingo's OpenAI client
//   - anthropic: langchaingo's Anthropic client
package llm
