// Package viz renders session results for the terminal.
//
//   - [PKTable], [FitTable], [DoseTable], [DatasetTable], [GroupTable]: lipgloss tables
//   - [PlotProfile]: asciigraph plot of the simulated profile with observed overlays
//   - [ProgressBar], [StatusLine]: request progress for the fit view
//
// Colours come from the current [Theme]; missing values render as "-".
package viz
