// Package rules ships the built-in policy handlers and the factory that
// turns configuration entries into live dispatch handlers.
//
// Each rule inspects the opaque hook payload with gjson rather than binding
// it to structs, so unknown agent fields never break matching.
package rules
