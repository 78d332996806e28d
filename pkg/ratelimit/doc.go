// Package ratelimit provides per-IP token-bucket rate limiting middleware for
// the frontdesk HTTP API, with path exclusions and automatic stale-entry cleanup.
package ratelimit
