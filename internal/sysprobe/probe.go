// Package sysprobe identifies the host distribution and its package manager.
package sysprobe

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Family is the normalized distribution family derived from os-release.
type Family string

const (
	FamilyDebian  Family = "debian"
	FamilyFedora  Family = "fedora"
	FamilyArch    Family = "arch"
	FamilySuse    Family = "suse"
	FamilyUnknown Family = "unknown"
)

// ManagerKind names a supported package manager. The string form matches the
// registry key in the pkgmgr package.
type ManagerKind string

const (
	ManagerApt    ManagerKind = "apt"
	ManagerDnf    ManagerKind = "dnf"
	ManagerPacman ManagerKind = "pacman"
	ManagerZypper ManagerKind = "zypper"
)

func (k ManagerKind) String() string { return string(k) }

// Distribution describes the host as reported by /etc/os-release.
type Distribution struct {
	ID         string
	IDLike     []string
	PrettyName string
	Family     Family
}

func (d Distribution) String() string {
	if d.PrettyName != "" {
		return d.PrettyName
	}
	if d.ID != "" {
		return d.ID
	}
	return "unknown distribution"
}

// ErrUnsupportedSystem is returned by Detect when no known package manager
// binary is present on PATH.
var ErrUnsupportedSystem = errors.New("unsupported system")

var (
	osReleasePath = "/etc/os-release"
	lookPathFn    = exec.LookPath
)

// managerProbes is checked in order; the first binary found on PATH decides
// the manager. The fixed order keeps detection deterministic on hosts that
// carry more than one manager.
var managerProbes = []struct {
	binary string
	kind   ManagerKind
}{
	{"apt-get", ManagerApt},
	{"dnf", ManagerDnf},
	{"pacman", ManagerPacman},
	{"zypper", ManagerZypper},
}

// Detect reads /etc/os-release and locates the package manager. A missing or
// unparseable os-release file degrades to FamilyUnknown; a missing package
// manager is fatal and wraps ErrUnsupportedSystem.
func Detect() (Distribution, ManagerKind, error) {
	dist := readOSRelease(osReleasePath)
	for _, probe := range managerProbes {
		if _, err := lookPathFn(probe.binary); err == nil {
			return dist, probe.kind, nil
		}
	}
	return dist, "", fmt.Errorf("%w: no supported package manager on PATH (tried apt-get, dnf, pacman, zypper)", ErrUnsupportedSystem)
}

func readOSRelease(path string) Distribution {
	dist := Distribution{Family: FamilyUnknown}

	file, err := os.Open(path)
	if err != nil {
		return dist
	}
	defer file.Close()

	fields := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		fields[key] = strings.Trim(value, `"'`)
	}

	dist.ID = fields["ID"]
	dist.PrettyName = fields["PRETTY_NAME"]
	if like := fields["ID_LIKE"]; like != "" {
		dist.IDLike = strings.Fields(like)
	}

	dist.Family = familyFor(dist.ID)
	if dist.Family == FamilyUnknown {
		for _, token := range dist.IDLike {
			if fam := familyFor(token); fam != FamilyUnknown {
				dist.Family = fam
				break
			}
		}
	}
	return dist
}

func familyFor(id string) Family {
	switch strings.ToLower(id) {
	case "debian", "ubuntu", "linuxmint", "pop", "raspbian":
		return FamilyDebian
	case "fedora", "rhel", "centos", "rocky", "almalinux":
		return FamilyFedora
	case "arch", "archlinux", "manjaro", "endeavouros":
		return FamilyArch
	case "suse", "opensuse", "opensuse-leap", "opensuse-tumbleweed", "sles":
		return FamilySuse
	}
	return FamilyUnknown
}
