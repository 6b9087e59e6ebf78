// Package aggregates implements the flow write paths: authoring and activation
// of flow versions, assignment of the active version to a learner, and the
// interaction state machine that advances component, step and flow progress.
//
// Each write runs in one transaction through a TxRunner. Rows are guarded by
// their revision column, and the events a write produces land in the outbox
// inside that same transaction.
package aggregates
