package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ServiceOptions describes the systemd unit that runs the adapter.
type ServiceOptions struct {
	UnitPath   string
	User       string
	WorkDir    string
	Binary     string
	ConfigFile string
	LogLevel   string
}

func (o ServiceOptions) validate() error {
	var problems []string
	if o.UnitPath == "" {
		problems = append(problems, "unit path is required")
	}
	if o.Binary == "" {
		problems = append(problems, "binary is required")
	} else if !filepath.IsAbs(o.Binary) {
		problems = append(problems, fmt.Sprintf("binary %q must be an absolute path", o.Binary))
	}
	if o.ConfigFile == "" {
		problems = append(problems, "config file is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid service options: %s", strings.Join(problems, ", "))
	}
	return nil
}

// ServiceUnit renders the unit file contents.
func ServiceUnit(o ServiceOptions) string {
	logLevel := o.LogLevel
	if logLevel == "" {
		logLevel = "info"
	}

	var b strings.Builder
	b.WriteString("[Unit]\n")
	b.WriteString("Description=Tesy convector climate adapter\n")
	b.WriteString("After=network-online.target\n")
	b.WriteString("Wants=network-online.target\n\n")

	b.WriteString("[Service]\n")
	b.WriteString("Type=simple\n")
	if o.User != "" {
		fmt.Fprintf(&b, "User=%s\n", o.User)
	}
	if o.WorkDir != "" {
		fmt.Fprintf(&b, "WorkingDirectory=%s\n", o.WorkDir)
	}
	fmt.Fprintf(&b, "ExecStart=%s -config-file %s -log-level %s\n", o.Binary, o.ConfigFile, logLevel)
	b.WriteString("Restart=on-failure\n")
	b.WriteString("RestartSec=5s\n\n")

	b.WriteString("[Install]\n")
	b.WriteString("WantedBy=multi-user.target\n")
	return b.String()
}

func InstallService(o ServiceOptions) error {
	if err := o.validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(o.UnitPath), 0755); err != nil {
		return fmt.Errorf("create unit directory: %w", err)
	}
	return os.WriteFile(o.UnitPath, []byte(ServiceUnit(o)), 0644)
}
