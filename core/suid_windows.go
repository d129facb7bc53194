//go:build windows

package core

// issuid always reports false on Windows: there is no set-UID/set-GID
// executable concept, so environment-variable inputs are never
// suppressed on this predicate's account.
func issuid() bool {
	return false
}
