// Package auth enforces the shared API key on the gRPC listener and on the
// HTTP control and frame endpoints.
//
// When the mode is not "apikey", or no key is configured, every call passes.
// Otherwise the key is read from the configured header (HTTP) or metadata key
// (gRPC) and compared in constant time; a missing or wrong key is rejected
// with 401 / codes.Unauthenticated.
package auth
