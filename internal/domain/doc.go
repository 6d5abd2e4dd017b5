// Package domain holds the store locator's core types and the ports that
// adapters implement.
//
// # Coordinates
//
// A Location's coordinate is a tagged value: either Resolved(lat, lon) or
// Unresolved. CMS items frequently lack coordinates until they are geocoded,
// and a stored latitude of 0 is a valid position, so "missing" is never
// encoded as a zero value.
//
// # Scope
//
// Every widget request is authorized by a capability token that decodes to a
// Scope: the site, the collection and the site's map provider key. Handlers
// read the provider key from the Scope only; it is never accepted from
// client input.
//
// # Errors
//
// The sentinel errors in this package form the error taxonomy used across the
// service. UpstreamError carries the provider's HTTP status so handlers can
// surface it instead of masking every provider failure as a 500.
package domain
