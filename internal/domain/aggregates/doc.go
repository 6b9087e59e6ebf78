// Package aggregates declares the flow write contracts, their inputs and
// results, and the coded errors the HTTP layer maps to responses.
package aggregates
