// Package api implements the local HTTP REST surface of Dealer Desk Core.
//
// This package provides:
//   - Operator login and logout, mirroring the relay facade's login result
//   - Store (tenant) listing and selection
//   - Relay status and a domain event endpoint for POS front ends
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The server is a thin adapter over the relay facade. Front ends on the
// card-room floor call it instead of talking to the hub directly; every
// domain event posted here is encoded by the relay package and either
// written to the hub socket or queued for the tenant until the link is back.
//
// # Security
//
// Login issues a short-lived HS256 access token (see package auth) that
// protects every other route except health. Login attempts are rate limited
// per client address when security.rate_limit is enabled. Logout revokes the
// token's session.
package api
