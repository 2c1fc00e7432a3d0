// Package auth issues and verifies the bearer tokens that guard the REST API.
//
// Tokens are HS256 JWTs signed with api.auth.jwt_secret. They carry a
// subject, recorded as the user in the audit trail, and one of two roles:
//   - viewer: read scenes, health and the audit trail
//   - operator: everything a viewer can do, plus issue commands
//
// There is no user store. Tokens are minted offline with
// "slobsbridge token <subject> [role]" and revoked by rotating the secret.
package auth
