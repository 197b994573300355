package pkgmgr

import "setupwiz/internal/sysprobe"

type dnfManager struct{}

func (dnfManager) Kind() sysprobe.ManagerKind { return sysprobe.ManagerDnf }
func (dnfManager) NeedsRoot() bool            { return true }
func (dnfManager) Env() []string              { return nil }

func (dnfManager) InstallArgs(pkgs []string) []string {
	return append([]string{"dnf", "install", "-y"}, pkgs...)
}

func (dnfManager) QueryArgs(pkg string) []string {
	return []string{"rpm", "-q", pkg}
}

func (dnfManager) InstalledMarker() string { return "" }

// RefreshArgs is empty: dnf refreshes expired metadata on install.
func (dnfManager) RefreshArgs() []string { return nil }
