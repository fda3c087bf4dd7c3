// Package memory provides a tiered key-value memory subsystem for agents.
//
// Three storage tiers with distinct retention roles compose into one store:
//   - Checkpointer: session-scoped short-term snapshots (process lifetime)
//   - EpisodicStore: durable append-only event log keyed by entity
//   - LongTermStore: growing per-entity aggregate of summarized history
//
// plus an optional SemanticRetriever for vector search over consolidated
// knowledge.
//
// Lifecycle:
//   - Manager.CreateSession starts a session; Checkpointer.Put accumulates
//     interaction snapshots during it.
//   - Manager.EndSession transfers the session's checkpoints into the
//     episodic tier under an entity key and clears the session. This is the
//     sole short-term → episodic path and is always explicit.
//   - Consolidator.Consolidate summarizes a key's episodic history through an
//     external summarizer and appends the result to the long-term tier.
//
// Tier implementations live in subpackages (store/inmem, store/file) and
// never know about each other; the Manager composes them through the tier
// interfaces only.
package memory
