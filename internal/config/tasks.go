package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"setupwiz/internal/pkgmgr"
	"setupwiz/internal/plan"
)

const zshPath = "/usr/bin/zsh"

const omzInstaller = "https://raw.githubusercontent.com/ohmyzsh/ohmyzsh/master/tools/install.sh"

// zshPlugins are cloned into the oh-my-zsh custom plugin directory.
var zshPlugins = []struct {
	name string
	repo string
}{
	{"zsh-autosuggestions", "https://github.com/zsh-users/zsh-autosuggestions"},
	{"zsh-syntax-highlighting", "https://github.com/zsh-users/zsh-syntax-highlighting.git"},
}

// iptablesRules is the baseline firewall: drop inbound, keep established
// connections, loopback, and ping.
const iptablesRules = `*filter
:INPUT DROP [0:0]
:FORWARD DROP [0:0]
:OUTPUT ACCEPT [0:0]
-A INPUT -i lo -j ACCEPT
-A INPUT -m conntrack --ctstate ESTABLISHED,RELATED -j ACCEPT
-A INPUT -p icmp --icmp-type echo-request -j ACCEPT
COMMIT
`

const iptablesRulesPath = "/etc/iptables/iptables.rules"

const zramConfig = `[zram0]
zram-size = ram / 2
compression-algorithm = zstd
`

const zramConfigPath = "/etc/systemd/zram-generator.conf"

// Tasks maps the profile to the task set for one run. It is a pure function
// of its inputs: mgr supplies the index refresh command, user and home anchor
// the shell and dotfile work. The returned tasks carry ids that stay stable
// across runs so --skip and --only selections keep meaning.
func (p *Profile) Tasks(mgr pkgmgr.Manager, user, home string) []plan.Task {
	var tasks []plan.Task

	refreshID := ""
	if mgr != nil {
		if argv := mgr.RefreshArgs(); len(argv) > 0 {
			refreshID = "refresh"
			tasks = append(tasks, plan.Task{
				ID:   refreshID,
				Name: "refresh package index",
				Kind: plan.KindRunShellStep,
				Argv: argv,
				Sudo: true,
			})
		}
	}

	packagesID := ""
	if len(p.Packages) > 0 {
		packagesID = "packages"
		t := plan.Task{
			ID:       packagesID,
			Name:     "install packages",
			Kind:     plan.KindInstallPackages,
			Packages: append([]string(nil), p.Packages...),
		}
		if refreshID != "" {
			t.DependsOn = []string{refreshID}
		}
		tasks = append(tasks, t)
	}

	var dotfileIDs []string
	for _, d := range p.Dotfiles {
		dest := d.Dest
		if dest == "" {
			dest = filepath.Join(home, d.Name)
		} else {
			dest = expandWithHome(dest, home)
		}
		id := "dotfile:" + d.Name
		dotfileIDs = append(dotfileIDs, id)
		tasks = append(tasks, plan.Task{
			ID:      id,
			Name:    "deploy " + d.Name,
			Kind:    plan.KindWriteConfigFile,
			Source:  expandWithHome(d.Source, home),
			Content: []byte(d.Content),
			Dest:    dest,
			Mode:    os.FileMode(d.Mode),
			Backup:  d.Backup,
		})
	}

	shellID := ""
	omzID := ""
	if p.ShellSetup {
		shellID = "default-shell"
		t := plan.Task{
			ID:   shellID,
			Name: "set zsh as default shell",
			Kind: plan.KindRunShellStep,
			Argv: []string{"chsh", "-s", zshPath, user},
			Sudo: true,
		}
		if packagesID != "" {
			t.DependsOn = []string{packagesID}
		}
		tasks = append(tasks, t)

		omzID = "oh-my-zsh"
		tasks = append(tasks, plan.Task{
			ID:        omzID,
			Name:      "install oh-my-zsh",
			Kind:      plan.KindRunShellStep,
			DependsOn: []string{shellID},
			Argv:      []string{"sh", "-c", fmt.Sprintf("curl -fsSL %s | CHSH=no RUNZSH=no bash", omzInstaller)},
			Creates:   filepath.Join(home, ".oh-my-zsh"),
		})

		for _, plugin := range zshPlugins {
			dest := filepath.Join(home, ".oh-my-zsh", "custom", "plugins", plugin.name)
			tasks = append(tasks, plan.Task{
				ID:        plugin.name,
				Name:      "install " + plugin.name,
				Kind:      plan.KindRunShellStep,
				DependsOn: []string{omzID},
				Argv:      []string{"git", "clone", plugin.repo, dest},
				Creates:   dest,
			})
		}
	}

	if p.Firewall {
		tasks = append(tasks, plan.Task{
			ID:    "firewall-rules",
			Name:  "write iptables rules",
			Kind:  plan.KindRunShellStep,
			Argv:  []string{"sh", "-c", fmt.Sprintf("mkdir -p %s && tee %s", filepath.Dir(iptablesRulesPath), iptablesRulesPath)},
			Stdin: iptablesRules,
			Sudo:  true,
		})
		tasks = append(tasks, plan.Task{
			ID:        "firewall-apply",
			Name:      "apply iptables rules",
			Kind:      plan.KindRunShellStep,
			DependsOn: []string{"firewall-rules"},
			Argv:      []string{"sh", "-c", "iptables-restore < " + iptablesRulesPath},
			Sudo:      true,
		})
	}

	if p.Zram {
		tasks = append(tasks, plan.Task{
			ID:    "zram",
			Name:  "configure zram swap",
			Kind:  plan.KindRunShellStep,
			Argv:  []string{"tee", zramConfigPath},
			Stdin: zramConfig,
			Sudo:  true,
		})
	}

	if p.PropagateRoot {
		if t, ok := p.rootConfigTask(shellID, omzID, dotfileIDs, home); ok {
			tasks = append(tasks, t)
		}
	}

	return tasks
}

// rootConfigTask gives root the same shell and dotfiles as the user, the last
// step of a run. There is nothing to do when neither shell setup nor dotfiles
// are enabled.
func (p *Profile) rootConfigTask(shellID, omzID string, dotfileIDs []string, home string) (plan.Task, bool) {
	var parts []string
	var deps []string

	if shellID != "" {
		parts = append(parts,
			fmt.Sprintf("cp -r %s /root/.oh-my-zsh", filepath.Join(home, ".oh-my-zsh")),
			fmt.Sprintf("chsh -s %s root", zshPath),
		)
		deps = append(deps, omzID)
	}
	for i, d := range p.Dotfiles {
		dest := d.Dest
		if dest == "" {
			dest = filepath.Join(home, d.Name)
		} else {
			dest = expandWithHome(dest, home)
		}
		parts = append(parts, fmt.Sprintf("cp %s %s", dest, filepath.Join("/root", d.Name)))
		deps = append(deps, dotfileIDs[i])
	}
	if len(parts) == 0 {
		return plan.Task{}, false
	}

	return plan.Task{
		ID:        "root-config",
		Name:      "propagate configuration to root",
		Kind:      plan.KindRunShellStep,
		DependsOn: deps,
		Argv:      []string{"sh", "-c", strings.Join(parts, " && ")},
		Sudo:      true,
	}, true
}

func expandWithHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
