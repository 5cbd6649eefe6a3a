// Package chat implements the client side of a BrainMate tutoring
// conversation: session negotiation (with optional password gating), a local
// message store that reconciles optimistic sends against server-confirmed
// messages, a single-flight send coordinator, and a background resync poller
// that heals divergence between the local and server views.
//
// The Client owns all lifecycle state for one negotiated session. Callers
// drive it with Start, SubmitPassword and Send, observe it with State and
// Messages, and must Close it when the conversation view goes away.
package chat
