package startup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallService(t *testing.T) {
	unitPath := filepath.Join(t.TempDir(), "systemd", "tesy-convector.service")
	opts := ServiceOptions{
		UnitPath:   unitPath,
		User:       "tesy",
		WorkDir:    "/opt/tesy-convector",
		Binary:     "/usr/local/bin/tesy-convector",
		ConfigFile: "/etc/tesy-convector/config.json",
	}

	require.NoError(t, InstallService(opts))

	contents, err := os.ReadFile(unitPath)
	require.NoError(t, err)
	unit := string(contents)
	assert.Contains(t, unit, "User=tesy\n")
	assert.Contains(t, unit, "WorkingDirectory=/opt/tesy-convector\n")
	assert.Contains(t, unit, "ExecStart=/usr/local/bin/tesy-convector -config-file /etc/tesy-convector/config.json -log-level info\n")
	assert.Contains(t, unit, "WantedBy=multi-user.target")
}

func TestServiceUnitOmitsEmptyFields(t *testing.T) {
	unit := ServiceUnit(ServiceOptions{
		Binary:     "/usr/local/bin/tesy-convector",
		ConfigFile: "config.json",
		LogLevel:   "debug",
	})
	assert.NotContains(t, unit, "User=")
	assert.NotContains(t, unit, "WorkingDirectory=")
	assert.Contains(t, unit, "-log-level debug")
}

func TestInstallServiceRejectsBadOptions(t *testing.T) {
	tests := []struct {
		name string
		opts ServiceOptions
		want string
	}{
		{"no unit path", ServiceOptions{Binary: "/bin/tesy", ConfigFile: "c.json"}, "unit path is required"},
		{"no binary", ServiceOptions{UnitPath: "/tmp/x.service", ConfigFile: "c.json"}, "binary is required"},
		{"relative binary", ServiceOptions{UnitPath: "/tmp/x.service", Binary: "tesy", ConfigFile: "c.json"}, "must be an absolute path"},
		{"no config", ServiceOptions{UnitPath: "/tmp/x.service", Binary: "/bin/tesy"}, "config file is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := InstallService(tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
