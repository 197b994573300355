package pkgmgr

import "setupwiz/internal/sysprobe"

type aptManager struct{}

func (aptManager) Kind() sysprobe.ManagerKind { return sysprobe.ManagerApt }
func (aptManager) NeedsRoot() bool            { return true }
func (aptManager) Env() []string              { return []string{"DEBIAN_FRONTEND=noninteractive"} }

func (aptManager) InstallArgs(pkgs []string) []string {
	return append([]string{"apt-get", "install", "-y"}, pkgs...)
}

// QueryArgs asks dpkg for the package status line. dpkg-query exits 0 even
// for packages that were removed with their config files left behind, so the
// marker below disambiguates.
func (aptManager) QueryArgs(pkg string) []string {
	return []string{"dpkg-query", "-W", "-f=${Status}", pkg}
}

func (aptManager) InstalledMarker() string { return "install ok installed" }

func (aptManager) RefreshArgs() []string { return []string{"apt-get", "update"} }
