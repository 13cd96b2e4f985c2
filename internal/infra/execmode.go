package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents the execution mode of the application.
type ExecMode string

const (
	// ExecModeUser runs as a regular user with state in the home directory.
	ExecModeUser ExecMode = "user"
	// ExecModeSystem runs as root, typically as a system service.
	ExecModeSystem ExecMode = "system"
)

const (
	systemDataDir = "/var/lib/stockmon"
	userDataDir   = ".stockmon"
)

// ExecModeConfig holds paths that depend on the execution mode.
type ExecModeConfig struct {
	Mode    ExecMode
	DataDir string // Where the store, key and logs live
	IsRoot  bool
}

// DetectExecMode determines the execution mode based on effective UID.
func DetectExecMode() *ExecModeConfig {
	return execModeFor(os.Geteuid() == 0, GetRealUserHome())
}

func execModeFor(isRoot bool, home string) *ExecModeConfig {
	if isRoot {
		return &ExecModeConfig{Mode: ExecModeSystem, DataDir: systemDataDir, IsRoot: true}
	}
	return &ExecModeConfig{Mode: ExecModeUser, DataDir: filepath.Join(home, userDataDir)}
}

// ResolveDataDir returns override when set, otherwise the mode's default.
func (c *ExecModeConfig) ResolveDataDir(override string) string {
	if override != "" {
		return override
	}
	return c.DataDir
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user (non-root)"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the invoking user's home directory, even under
// sudo where os.UserHomeDir points at root's home.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
