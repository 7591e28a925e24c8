// Package llm talks to the chat completion providers used for slide text
// extraction and note synthesis.
//
// Two implementations satisfy Completer:
//   - Client: any OpenAI-compatible /chat/completions endpoint (OpenAI,
//     NVIDIA, OpenRouter), with optional inline image parts for vision models
//   - GeminiClient: Google Gemini through google.golang.org/genai
//
// New picks one from Config.Provider.
//
// # Retry Behaviour
//
// Client retries on HTTP 408/429/5xx errors, empty content and network
// timeouts with exponential backoff (base 1s, max 10s, up to 5 attempts by
// default), honouring Retry-After. Context cancellation aborts retries
// immediately.
package llm
