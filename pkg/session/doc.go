// Package session holds the server-side session model and its stores.
//
// A Session is identified by ID and looked up by Token, the value carried
// in the cookie. Rotating the token on sign-in leaves the ID in place and
// makes the old token unusable.
//
// RedisStore is the production store. MemoryStore serves tests and
// single-process development.
package session
