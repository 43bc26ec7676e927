// Package httpserver provides the timebank service's HTTP surface: the
// provider and admin endpoints (Ed25519-signed requests, caller identity is
// the recovered signer), the oracle callback endpoint, the event feed, and
// the operational endpoints (liveness, readiness, drain, metrics).
package httpserver
