// Package jwt signs and verifies account auth tokens. A token names one
// account in its "sub" claim and carries an expiry; nothing else is encoded.
package jwt
