// Package widget is the embedding side of the store locator: a client for
// the gateway API, a Locator session that ranks stores from the viewer's
// position, and the map lifecycle that keeps rendered markers in step with
// the ranked list.
//
// Nothing here holds package-level state. The composition root owns a
// Registry of clients and hands them to each Locator it builds.
package widget
