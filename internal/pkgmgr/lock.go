package pkgmgr

import "strings"

// lockSignatures are stderr fragments the supported managers emit while
// another process holds the package database. All lowercase.
var lockSignatures = []string{
	"could not get lock",            // apt/dpkg
	"waiting for cache lock",        // apt
	"frontend lock was locked",      // dpkg
	"unable to lock database",       // pacman
	"waiting for process with pid",  // dnf
	"currently holding the yum lock", // dnf/yum
	"system management is locked",   // zypper
}

// IsLockContention reports whether command output indicates that the package
// database was locked by another process.
func IsLockContention(output string) bool {
	low := strings.ToLower(output)
	for _, sig := range lockSignatures {
		if strings.Contains(low, sig) {
			return true
		}
	}
	return false
}
