package pkgmgr

import "setupwiz/internal/sysprobe"

type zypperManager struct{}

func (zypperManager) Kind() sysprobe.ManagerKind { return sysprobe.ManagerZypper }
func (zypperManager) NeedsRoot() bool            { return true }
func (zypperManager) Env() []string              { return nil }

func (zypperManager) InstallArgs(pkgs []string) []string {
	return append([]string{"zypper", "--non-interactive", "install"}, pkgs...)
}

func (zypperManager) QueryArgs(pkg string) []string {
	return []string{"rpm", "-q", pkg}
}

func (zypperManager) InstalledMarker() string { return "" }

func (zypperManager) RefreshArgs() []string {
	return []string{"zypper", "--non-interactive", "refresh"}
}
