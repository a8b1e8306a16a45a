// Package model defines the provider‑agnostic abstractions and concrete
// helpers for interacting with text generation models inside Wingman.
//
// Core goals:
//   - Unify streaming + non‑streaming generation behind a single interface
//   - Describe a model identity (provider, id, endpoint, sampling) as a Descriptor
//   - Keep request/response shapes minimal and transport independent
//
// Providers (OpenAI, Anthropic, Gemini, Ollama) implement the Model interface
// from this package so the engine remains decoupled from vendor SDKs. The
// catalog subpackage resolves and builds them.
package model
