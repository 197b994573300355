package pkgmgr

import (
	"fmt"

	"setupwiz/internal/sysprobe"
)

var registry = map[sysprobe.ManagerKind]Manager{
	sysprobe.ManagerApt:    aptManager{},
	sysprobe.ManagerDnf:    dnfManager{},
	sysprobe.ManagerPacman: pacmanManager{},
	sysprobe.ManagerZypper: zypperManager{},
}

// Registry exposes the available managers. Intended for internal inspection/tests.
func Registry() map[sysprobe.ManagerKind]Manager {
	return registry
}

// Select returns the Manager for kind, as reported by sysprobe.Detect.
func Select(kind sysprobe.ManagerKind) (Manager, error) {
	if mgr, ok := registry[kind]; ok {
		return mgr, nil
	}
	return nil, fmt.Errorf("unsupported package manager %q", kind)
}
