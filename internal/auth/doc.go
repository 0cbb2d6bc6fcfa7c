// Package auth provides authentication and authorization.
//
// Two modes are supported:
//   - "none": every request runs as a default user, no login required
//   - "local": local user database with session cookies for the web UI
//     and Bearer tokens for API clients
//
// Select the mode with the AUTH_MODE environment variable. Local mode
// additionally reads:
//
//	AUTH_SESSION_SECRET=<hex-32-bytes>   # auto-generated if empty
//	AUTH_SESSION_LIFETIME=24h
//	AUTH_BCRYPT_COST=12
//	AUTH_SECURE_COOKIES=true
//
// The package also issues short-lived storage tokens: signed claims that
// scope a client to its own object-storage prefix, minted from an already
// authenticated session at /api/storage/token.
package auth
