// Package orchestrator runs simulate and fit requests against the model service on behalf
// of a session.
//
// Each request kind is single-flight: a submission while a request of the same kind is
// running is rejected with ErrBusy and never reaches the service. A fit and a simulation
// may overlap. Accepted requests run in the background; their lifecycle is reported as
// Events to subscribed listeners and through the Ticket returned on submission.
//
// While a request runs, a ticker advances an elapsed time and a visual progress value
// that approaches but never reaches 100. Progress carries no meaning about the solver's
// actual state. It is set to exactly 100 on success and frozen on failure, and the ticker
// is stopped on every terminal transition.
//
// Solver calls cannot be cancelled once submitted. The caller's context only supplies
// values; the call itself is bounded by the configured per-kind timeout.
package orchestrator
