// Package common holds identifiers shared across QuantAgg binaries and
// the metrics/observability layer.
package common

// PackageName identifies this project in metrics and logs.
const PackageName = "quantagg"

// Version is the build version, overridden at link time via
// -ldflags "-X github.com/flashbots/quantagg/common.Version=...".
var Version = "dev"
