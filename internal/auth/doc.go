// Package auth verifies session tokens for the device API.
//
// Sessions are HS256 JWTs issued by the account service. The subject claim
// is the owner ID used for every device ownership check. Tokens are read
// from the session cookie first and then from an Authorization: Bearer
// header. Token issuance here exists for tests and local tooling.
package auth
