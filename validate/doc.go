// Package validate holds the syntax checks and normalization rules shared by
// account creation, login, and email set management.
package validate
