// Package session holds the aggregate root of an experiment session: the equations and
// parsed model, initial amounts, the fit configuration with the current parameter values,
// the dose list, observed datasets, experiment groups, simulation settings and the
// latest results.
//
// State carries no lock of its own. It is owned by one caller at a time, normally the
// orchestrator, which serializes every access.
package session
