// Package api holds the wire types of the AgentFlow gateway's HTTP API:
// ChatCompletionRequest/Response/Chunk, ModelsResponse, ErrorEnvelope,
// HealthResponse and RootInfo. The handlers live in api/handlers.
//
// # API Overview
//
// AgentFlow provides an OpenAI-compatible RESTful API for:
//   - Chat completions, synchronous or SSE-streamed, routed to a configured LLM provider
//   - Provider model listing
//   - Health monitoring across all registered providers
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
//
// No OpenAPI/Swagger document is generated or served for this API.
package api
