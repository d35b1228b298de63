// Package workflow drives the batch import wizard: upload, preview, prompt
// construction, mapping generation, ingestion and result reporting.
//
// The Orchestrator is the only writer of workflow state. Every operation
// and every asynchronous completion (status poll, deferred prompt save,
// delayed upload transition) goes through it and is checked against the
// generation that Reset advances, so results that arrive after a reset are
// dropped instead of applied.
package workflow
