// Package auth provides authentication and authorisation for the sequencer
// API.
//
// Operators are declared in config.yaml under security.users with an
// Argon2id password hash. A successful login yields a short-lived HS256 JWT
// carrying the operator's role; every API request is then authorised by
// signature alone using a static role-permission table:
//
//	viewer   → sequence:read
//	operator → sequence:read, sequence:control
//	admin    → sequence:read, sequence:control, sequence:manage
package auth
