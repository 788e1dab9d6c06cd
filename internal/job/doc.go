// Package job implements the processing lifecycle for document analysis:
// PENDING -> PROCESSING -> {COMPLETED, FAILED}. Records live in the
// document store keyed by (document id, user id, job type), one record
// per key, so duplicate submissions are idempotent and multiple
// processes can share one store. The Runner schedules background runs;
// the Service owns every state transition.
package job
