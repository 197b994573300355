package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ilogger "setupwiz/internal/logger"

	"github.com/goccy/go-json"
)

// DotfileSpec describes one config file deployed to the user's home. Source
// names a file to copy; when empty, Content is written instead. Dest defaults
// to $HOME/<name>.
type DotfileSpec struct {
	Name    string `json:"name"`
	Source  string `json:"source,omitempty"`
	Content string `json:"content,omitempty"`
	Dest    string `json:"dest,omitempty"`
	Mode    uint32 `json:"mode,omitempty"`
	Backup  bool   `json:"backup"`
}

// Profile is the declarative input the task list is built from. Fields absent
// from the user's profile.json keep their defaults.
type Profile struct {
	Packages      []string      `json:"packages"`
	Dotfiles      []DotfileSpec `json:"dotfiles"`
	ShellSetup    bool          `json:"shell_setup"`
	Firewall      bool          `json:"firewall"`
	Zram          bool          `json:"zram"`
	PropagateRoot bool          `json:"propagate_root"`
}

const defaultZshrc = `export ZSH="$HOME/.oh-my-zsh"

ZSH_THEME="robbyrussell"

plugins=(git zsh-autosuggestions zsh-syntax-highlighting)

source $ZSH/oh-my-zsh.sh

export EDITOR=vim
`

const defaultVimrc = `syntax on
set number
set tabstop=4
set shiftwidth=4
set expandtab
set autoindent
set incsearch
set hlsearch
`

var defaultProfile = Profile{
	Packages: []string{"firefox", "clang", "zsh", "git", "gimp", "mpv", "spectacle", "curl"},
	Dotfiles: []DotfileSpec{
		{Name: ".zshrc", Content: defaultZshrc, Backup: true},
		{Name: ".vimrc", Content: defaultVimrc, Backup: true},
	},
	ShellSetup:    true,
	Firewall:      true,
	Zram:          true,
	PropagateRoot: true,
}

// clone returns a copy that shares no slice storage with the receiver, so
// callers can never mutate the package defaults through a returned profile.
func (p Profile) clone() *Profile {
	p.Packages = append([]string(nil), p.Packages...)
	p.Dotfiles = append([]DotfileSpec(nil), p.Dotfiles...)
	return &p
}

var (
	profileOnce   sync.Once
	profileCached *Profile
)

// CurrentProfile returns the effective profile: the defaults overlaid with
// ~/.setupwiz/profile.json when that file exists. The result is cached for
// the process lifetime.
func CurrentProfile() *Profile {
	profileOnce.Do(func() {
		profileCached = loadProfile()
	})
	if profileCached == nil {
		return defaultProfile.clone()
	}
	return profileCached
}

func loadProfile() *Profile {
	home, err := os.UserHomeDir()
	if err != nil {
		ilogger.LogWarn(fmt.Sprintf("Failed to resolve home directory for profile: %v; using defaults", err))
		return defaultProfile.clone()
	}

	configDir := filepath.Clean(filepath.Join(home, ".setupwiz"))
	profilePath := filepath.Clean(filepath.Join(configDir, "profile.json"))
	rel, err := filepath.Rel(configDir, profilePath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return defaultProfile.clone()
	}

	p, err := readProfile(profilePath)
	if err != nil {
		if !os.IsNotExist(err) {
			ilogger.LogWarn(fmt.Sprintf("Failed to load profile %s: %v; using defaults", profilePath, err))
		}
		return defaultProfile.clone()
	}
	return p
}

// LoadProfileFile reads an explicitly requested profile. Unlike the implicit
// ~/.setupwiz/profile.json, a missing or broken file here is an error.
func LoadProfileFile(path string) (*Profile, error) {
	expanded, err := expandTilde(path)
	if err != nil {
		return nil, err
	}
	return readProfile(expanded)
}

// readProfile decodes a profile over a copy of the defaults, so absent fields
// keep their default values. The slices are swapped out before decoding: a
// list in the file replaces the default list wholesale instead of merging
// element-wise with it.
func readProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is either fixed under the user home or explicitly user-supplied
	if err != nil {
		return nil, err
	}

	p := defaultProfile
	p.Packages = nil
	p.Dotfiles = nil
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	if p.Packages == nil {
		p.Packages = append([]string(nil), defaultProfile.Packages...)
	}
	if p.Dotfiles == nil {
		p.Dotfiles = append([]DotfileSpec(nil), defaultProfile.Dotfiles...)
	}
	normalizeProfile(&p)
	return &p, nil
}

func normalizeProfile(p *Profile) {
	packages := p.Packages[:0:0]
	for _, pkg := range p.Packages {
		pkg = strings.TrimSpace(pkg)
		if pkg != "" {
			packages = append(packages, pkg)
		}
	}
	p.Packages = packages

	dotfiles := p.Dotfiles[:0:0]
	for _, d := range p.Dotfiles {
		d.Name = strings.TrimSpace(d.Name)
		if d.Name == "" {
			continue
		}
		dotfiles = append(dotfiles, d)
	}
	p.Dotfiles = dotfiles
}

func expandTilde(path string) (string, error) {
	raw := strings.TrimSpace(path)
	if raw == "~" || strings.HasPrefix(raw, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if raw == "~" {
			return home, nil
		}
		return home + raw[1:], nil
	}
	return raw, nil
}

// ResetProfileCacheForTest clears the cached profile.
func ResetProfileCacheForTest() {
	profileCached = nil
	profileOnce = sync.Once{}
}
