// Package auth authenticates the human users of SenseGrid.
//
// It provides:
//   - bcrypt password hashing with a 64-character plaintext limit
//   - HS256 session tokens carrying the user id and email
//   - Registration, login and bearer-token resolution to a live User
//   - SQL persistence of user accounts (SQLite or Postgres)
//
// Tokens are stateless. Rotating the signing secret invalidates every
// outstanding token; there is no server-side revocation list.
package auth
