package pkgmgr

import "setupwiz/internal/sysprobe"

type pacmanManager struct{}

func (pacmanManager) Kind() sysprobe.ManagerKind { return sysprobe.ManagerPacman }
func (pacmanManager) NeedsRoot() bool            { return true }
func (pacmanManager) Env() []string              { return nil }

// InstallArgs passes --needed so already up-to-date packages are not
// reinstalled when several are requested at once.
func (pacmanManager) InstallArgs(pkgs []string) []string {
	return append([]string{"pacman", "-S", "--noconfirm", "--needed"}, pkgs...)
}

func (pacmanManager) QueryArgs(pkg string) []string {
	return []string{"pacman", "-Q", pkg}
}

func (pacmanManager) InstalledMarker() string { return "" }

func (pacmanManager) RefreshArgs() []string { return []string{"pacman", "-Sy"} }
