// Package players holds the narrow interfaces to the account-side
// collaborators: credential verification, display-info lookup, and
// win/loss/draw statistics.
//
// Credential issuance, registration, and profile CRUD live in an
// external service; this package only verifies tokens that service
// issued (JWTVerifier) and reads/increments the rows it maintains
// (SQLiteDirectory). Connections without a valid credential resolve to
// the shared "anonymous" sentinel identity, which is excluded from
// statistics.
package players
