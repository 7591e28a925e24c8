// Package api defines the wire-format types served by the HTTP API and the
// converters that build them from internal task records.
//
// Payloads use snake_case JSON so existing lecture-note clients keep working.
// Timestamps are RFC3339. Object locations are never exposed directly; notes
// and slide images are returned as expiring signed URLs.
//
// StatusCode maps the service error markers onto HTTP codes: unknown tasks are
// 404, state-contract violations 409, rejected input 400.
package api
