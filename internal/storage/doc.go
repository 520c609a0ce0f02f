// Package storage archives simulation and fit runs on disk and exports profiles and PK
// summaries as CSV.
//
// Each run lives in its own directory under the archive root:
//
//	<root>/<run id>/metadata.json
//	<root>/<run id>/profile.csv   (simulations)
//	<root>/<run id>/pk.csv        (simulations)
//
// Missing samples and uncomputable metrics are written as empty cells.
package storage
