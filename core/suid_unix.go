//go:build !windows

package core

import "os"

// issuid reports whether the process's real and effective UIDs differ,
// the security-hardening predicate that suppresses trust in
// environment-variable inputs (KRB5CCNAME) for set-UID executables.
func issuid() bool {
	return os.Getuid() != os.Geteuid()
}
