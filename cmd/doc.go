// Package cmd contains the standalone QuantAgg binaries.
//
// # Available Commands
//
//   - collector: runs the aggregation collector service
//   - contribute: submits one contributor value to a collector
//
// # Quick Start
//
// Run a collector with an in-memory store:
//
//	go run ./cmd/collector --spec=spec.json --step-size=0.125
//
// Submit a value:
//
//	go run ./cmd/contribute --collector=http://localhost:8080 \
//	    --contributor=alice --value=value.json
package cmd
