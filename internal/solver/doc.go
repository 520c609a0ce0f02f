// Package solver is the contract with the external model service: the equation parser,
// the forward simulator and the least-squares fitter.
//
// The service answers every call with an envelope, {"status": "ok", "data": ...} or
// {"status": "error", "message": ...}. Client maps transport failures and non-2xx
// responses to *pk.TransportError and a 2xx error envelope to *pk.SolverError.
package solver
