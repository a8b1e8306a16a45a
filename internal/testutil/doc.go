// Package testutil contains helpers used across tests to reduce boilerplate:
// a scripted streaming model and a fluent builder for editor contexts. They
// are not intended for production usage.
package testutil
