// Package fitting holds the fit configuration of a session: the current value of every
// model parameter, which parameters are free, their bounds and the residual weighting.
//
// Parameter values are shared with simulation. A fit only ever reads them as the initial
// guess and writes the estimates back on success.
package fitting
