// Package core provides the foundational domain types shared by Wingman's
// generation relay. It defines:
//
//   - EditorContext (the file/line/selection snapshot prompts are built from)
//   - WritebackPayload (generated code waiting to be polled by an editor)
//   - AgentConfiguration / ConfiguredState (engine identity and its status)
//   - Content and Part (conversation messages handed to model providers)
//   - Event (the engine's incremental output stream)
//   - the error taxonomy used to classify failures at the HTTP boundary
//   - port discovery defaults shared by the server and its clients
package core
