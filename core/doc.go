// Package core provides the foundational domain types and interfaces used by
// vexora. It defines the core abstractions for:
//
//   - Actors (named participants with tools, memories and turn hooks)
//   - The active actor slot (Activate / CurrentActor / WithActor)
//   - Threads (conversation histories) and their stores
//   - Messages and their role-based content parts
//   - ToolContext (scoped tool execution) and the Orchestrator view
//
// The package keeps implementation concerns (persistence, model providers,
// concrete actors) out of scope, exposing small interfaces to enable custom
// backends and extensions.
package core
