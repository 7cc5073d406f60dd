// Package testutil provides spec and value builders plus stub
// aggregation factories shared by tests across the repository.
package testutil
