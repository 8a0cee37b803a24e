// Package auth issues and validates bearer tokens for the amplifier API.
//
// There is no user database. Tokens are HS256 JWTs signed with the
// configured secret and minted offline with "ampctl token". Each token
// carries a role, and roles map to a fixed permission set:
//
//	viewer   - read state, diagnostics and history
//	operator - viewer plus control commands
//	admin    - operator plus raw register reads
package auth
