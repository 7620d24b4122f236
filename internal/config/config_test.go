package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates loading with defaults and environment overrides only.
// Scope: Unit Test
// Expected: Defaults apply, environment variables override them and the result validates.
// Test Case ID: CFG-01
func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("INSTALLER_DEBUG", "true")
	t.Setenv("INSTALLER_MULTISITE", "true")
	t.Setenv("INSTALLER_FLEET_PAGE_SIZE", "50")
	t.Setenv("SERVER_READ_TIMEOUT", "3s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.True(t, cfg.Installer.Debug)
	assert.True(t, cfg.Installer.Multisite)
	assert.Equal(t, 50, cfg.Installer.FleetPageSize)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "lifecycle_version", cfg.Installer.MarkerKey)
	assert.Equal(t, "main", cfg.Installer.PrimaryTenant)
}

// TestPurpose: Validates YAML file loading and precedence.
// Scope: Unit Test
// Expected: File values override defaults and environment variables override file values.
// Test Case ID: CFG-02
func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lifecycle.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  driver: sqlite
  sqlite_path: /var/lib/lifecycle/data.db
installer:
  version: 2.1.0
  multisite: true
  mirror_backend: redis
redis:
  addr: redis:6379
server:
  write_timeout: 90s
`), 0o600))
	t.Setenv("INSTALLER_VERSION", "2.2.0")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/var/lib/lifecycle/data.db", cfg.Store.SQLitePath)
	assert.Equal(t, "2.2.0", cfg.Installer.Version)
	assert.Equal(t, MirrorRedis, cfg.Installer.MirrorBackend)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 20, cfg.Installer.FleetPageSize)
}

// TestPurpose: Validates that a missing config file is an error when a path is given.
// Scope: Unit Test
// Expected: Load fails.
// Test Case ID: CFG-03
func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

// TestPurpose: Validates configuration rules.
// Scope: Unit Test
// Expected: Each invalid setting is rejected.
// Test Case ID: CFG-04
func TestValidate(t *testing.T) {
	base := func() *Config {
		c := DefaultConfig()
		c.Store.Driver = DriverMemory
		return c
	}
	require.NoError(t, base().Validate())

	cases := map[string]func(c *Config){
		"postgres without password": func(c *Config) { c.Store.Driver = DriverPostgres },
		"unknown driver":            func(c *Config) { c.Store.Driver = "mysql" },
		"bad version":               func(c *Config) { c.Installer.Version = "one" },
		"same keys":                 func(c *Config) { c.Installer.DeleteDataKey = c.Installer.MarkerKey },
		"marker under app prefix":   func(c *Config) { c.Installer.MarkerKey = "app.version" },
		"zero page size":            func(c *Config) { c.Installer.FleetPageSize = 0 },
		"unknown mirror":            func(c *Config) { c.Installer.MirrorBackend = "etcd" },
		"redis without addr": func(c *Config) {
			c.Installer.MirrorBackend = MirrorRedis
			c.Redis.Addr = ""
		},
		"no primary tenant": func(c *Config) { c.Installer.PrimaryTenant = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

// TestPurpose: Validates the admin secret requirement for the server.
// Scope: Unit Test
// Expected: Short secrets and an empty issuer are rejected.
// Test Case ID: CFG-05
func TestValidateServer(t *testing.T) {
	c := DefaultConfig()
	assert.Error(t, c.ValidateServer())
	c.Security.AdminTokenSecret = "0123456789abcdef0123456789abcdef"
	assert.NoError(t, c.ValidateServer())
	c.Security.AdminTokenIssuer = ""
	assert.Error(t, c.ValidateServer())
}
