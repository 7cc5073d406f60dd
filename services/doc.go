// Package services wraps the aggregation core with an HTTP deployment
// layer.
//
// The Collector is the server-side service: it accepts contributor
// submissions for the current round over HTTP, and when the round
// coordinator signals a transition it runs the stochastic
// discretization process over the collected values and persists the
// round record. The collector owns the single process state slot and
// serializes rounds behind it; the aggregation core itself stays pure.
//
// Round results are persisted through the RoundStore interface, with
// a PostgreSQL implementation for deployments and an in-memory one
// for tests and demos.
package services
