// Package pk provides the shared domain types of a pharmacokinetic experiment session.
//
// The package defines the values every other component exchanges:
//
//   - [Model]: compartments, parameters and derived expressions produced by the parser service
//   - [TimeSeries]: a Time axis plus named, aligned [Column] values (NaN marks a missing value)
//   - [Summary]: per-compartment PK metrics (Cmax, Tmax, AUC, half-life)
//   - the error taxonomy: [ValidationError], [TransportError], [SolverError], [DataIngestionError]
//
// # Wire format
//
// TimeSeries values travel as flat JSON objects, `{"Time": [...], "A": [...]}`, with null for
// missing samples. Summary accepts both the map and the array encodings the solver service has
// produced over time and normalizes them into one ordered slice.
package pk
