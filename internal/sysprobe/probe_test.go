package sysprobe

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeOSRelease(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "os-release")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write os-release fixture: %v", err)
	}
	return path
}

func TestReadOSRelease(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantID     string
		wantFamily Family
		wantPretty string
		wantLike   int
	}{
		{
			name: "ubuntu",
			content: `PRETTY_NAME="Ubuntu 24.04 LTS"
NAME="Ubuntu"
ID=ubuntu
ID_LIKE=debian
VERSION_ID="24.04"
`,
			wantID:     "ubuntu",
			wantFamily: FamilyDebian,
			wantPretty: "Ubuntu 24.04 LTS",
			wantLike:   1,
		},
		{
			name: "fedora",
			content: `NAME="Fedora Linux"
ID=fedora
PRETTY_NAME="Fedora Linux 40 (Workstation Edition)"
`,
			wantID:     "fedora",
			wantFamily: FamilyFedora,
			wantPretty: "Fedora Linux 40 (Workstation Edition)",
		},
		{
			name: "arch without id_like",
			content: `NAME="Arch Linux"
PRETTY_NAME="Arch Linux"
ID=arch
`,
			wantID:     "arch",
			wantFamily: FamilyArch,
			wantPretty: "Arch Linux",
		},
		{
			name: "family resolved through id_like",
			content: `ID=neon
ID_LIKE="ubuntu debian"
PRETTY_NAME="KDE neon 6.0"
`,
			wantID:     "neon",
			wantFamily: FamilyDebian,
			wantPretty: "KDE neon 6.0",
			wantLike:   2,
		},
		{
			name: "tumbleweed single quotes",
			content: `ID='opensuse-tumbleweed'
PRETTY_NAME='openSUSE Tumbleweed'
`,
			wantID:     "opensuse-tumbleweed",
			wantFamily: FamilySuse,
			wantPretty: "openSUSE Tumbleweed",
		},
		{
			name: "comments and malformed lines skipped",
			content: `# comment
this line has no equals sign

ID=debian
`,
			wantID:     "debian",
			wantFamily: FamilyDebian,
		},
		{
			name:       "unknown distro",
			content:    "ID=plan9wannabe\n",
			wantID:     "plan9wannabe",
			wantFamily: FamilyUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dist := readOSRelease(writeOSRelease(t, tt.content))
			if dist.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", dist.ID, tt.wantID)
			}
			if dist.Family != tt.wantFamily {
				t.Errorf("Family = %q, want %q", dist.Family, tt.wantFamily)
			}
			if dist.PrettyName != tt.wantPretty {
				t.Errorf("PrettyName = %q, want %q", dist.PrettyName, tt.wantPretty)
			}
			if len(dist.IDLike) != tt.wantLike {
				t.Errorf("len(IDLike) = %d, want %d", len(dist.IDLike), tt.wantLike)
			}
		})
	}
}

func TestReadOSReleaseMissingFile(t *testing.T) {
	dist := readOSRelease(filepath.Join(t.TempDir(), "does-not-exist"))
	if dist.Family != FamilyUnknown {
		t.Errorf("Family = %q, want %q", dist.Family, FamilyUnknown)
	}
	if dist.ID != "" {
		t.Errorf("ID = %q, want empty", dist.ID)
	}
}

func TestDetectManagerPriority(t *testing.T) {
	restore := SetOSReleasePath(writeOSRelease(t, "ID=ubuntu\nID_LIKE=debian\n"))
	defer restore()

	tests := []struct {
		name      string
		available map[string]bool
		want      ManagerKind
	}{
		{"apt wins when everything is present", map[string]bool{"apt-get": true, "dnf": true, "pacman": true, "zypper": true}, ManagerApt},
		{"dnf before pacman", map[string]bool{"dnf": true, "pacman": true}, ManagerDnf},
		{"pacman only", map[string]bool{"pacman": true}, ManagerPacman},
		{"zypper only", map[string]bool{"zypper": true}, ManagerZypper},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreLook := SetLookPathFn(func(file string) (string, error) {
				if tt.available[file] {
					return "/usr/bin/" + file, nil
				}
				return "", errors.New("not found")
			})
			defer restoreLook()

			dist, kind, err := Detect()
			if err != nil {
				t.Fatalf("Detect() error = %v", err)
			}
			if kind != tt.want {
				t.Errorf("kind = %q, want %q", kind, tt.want)
			}
			if dist.Family != FamilyDebian {
				t.Errorf("Family = %q, want %q", dist.Family, FamilyDebian)
			}
		})
	}
}

func TestDetectUnsupportedSystem(t *testing.T) {
	restore := SetOSReleasePath(writeOSRelease(t, "ID=mystery\n"))
	defer restore()
	restoreLook := SetLookPathFn(func(string) (string, error) {
		return "", errors.New("not found")
	})
	defer restoreLook()

	dist, kind, err := Detect()
	if !errors.Is(err, ErrUnsupportedSystem) {
		t.Fatalf("Detect() error = %v, want ErrUnsupportedSystem", err)
	}
	if kind != "" {
		t.Errorf("kind = %q, want empty", kind)
	}
	if dist.ID != "mystery" {
		t.Errorf("ID = %q, want %q (distribution still reported)", dist.ID, "mystery")
	}
}

func TestDistributionString(t *testing.T) {
	tests := []struct {
		name string
		dist Distribution
		want string
	}{
		{"pretty name preferred", Distribution{ID: "ubuntu", PrettyName: "Ubuntu 24.04 LTS"}, "Ubuntu 24.04 LTS"},
		{"id fallback", Distribution{ID: "arch"}, "arch"},
		{"empty", Distribution{}, "unknown distribution"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dist.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
