package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir changes into dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(oldWd) })
}

// TestConfigPrecedence tests only what users can actually see and rely on:
// which value wins, and what introspection reports about it.
func TestConfigPrecedence(t *testing.T) {
	t.Run("Config from cadence.toml wins over config.toml", func(t *testing.T) {
		Reset()
		defer Reset()

		// Setup: Create both config files with conflicting values
		tempDir := t.TempDir()
		cadenceDir := filepath.Join(tempDir, ".cadence")
		require.NoError(t, os.MkdirAll(cadenceDir, 0755))

		// config.toml says database path is "old.db"
		require.NoError(t, os.WriteFile(
			filepath.Join(cadenceDir, "config.toml"),
			[]byte(`[database]
path = "old.db"`),
			0644,
		))

		// cadence.toml says database path is "new.db"
		require.NoError(t, os.WriteFile(
			filepath.Join(cadenceDir, "cadence.toml"),
			[]byte(`[database]
path = "new.db"`),
			0644,
		))

		chdir(t, tempDir)
		t.Setenv("HOME", tempDir)

		cfg, err := Load()
		require.NoError(t, err)

		// Observable behavior: The loaded config uses the value from cadence.toml
		assert.Equal(t, "new.db", cfg.Database.Path)
	})

	t.Run("Introspection shows which file provided each setting", func(t *testing.T) {
		Reset()
		defer Reset()

		// Setup: Create files with non-overlapping settings
		tempDir := t.TempDir()
		cadenceDir := filepath.Join(tempDir, ".cadence")
		require.NoError(t, os.MkdirAll(cadenceDir, 0755))

		// config.toml only has server settings
		require.NoError(t, os.WriteFile(
			filepath.Join(cadenceDir, "config.toml"),
			[]byte(`[server]
log_theme = "gruvbox"`),
			0644,
		))

		// cadence.toml only has database settings
		require.NoError(t, os.WriteFile(
			filepath.Join(cadenceDir, "cadence.toml"),
			[]byte(`[database]
path = "data.db"`),
			0644,
		))

		chdir(t, tempDir)
		t.Setenv("HOME", tempDir)

		_, err := Load()
		require.NoError(t, err)

		intro, err := GetConfigIntrospection()
		require.NoError(t, err)

		// Observable behavior: Introspection tells us which file each setting came from
		var dbPathSource, themeSource string
		for _, setting := range intro.Settings {
			if setting.Key == "database.path" {
				dbPathSource = filepath.Base(setting.SourcePath)
			}
			if setting.Key == "server.log_theme" {
				themeSource = filepath.Base(setting.SourcePath)
			}
		}

		assert.Equal(t, "cadence.toml", dbPathSource)
		assert.Equal(t, "config.toml", themeSource)
	})

	t.Run("Project config overrides user config", func(t *testing.T) {
		Reset()
		defer Reset()

		// Setup: User config in home directory
		homeDir := t.TempDir()
		userCadenceDir := filepath.Join(homeDir, ".cadence")
		require.NoError(t, os.MkdirAll(userCadenceDir, 0755))
		require.NoError(t, os.WriteFile(
			filepath.Join(userCadenceDir, "cadence.toml"),
			[]byte(`[server]
port = 1111`),
			0644,
		))

		// Project config in working directory
		projectDir := t.TempDir()
		require.NoError(t, os.WriteFile(
			filepath.Join(projectDir, "cadence.toml"),
			[]byte(`[server]
port = 2222`),
			0644,
		))

		chdir(t, projectDir)
		t.Setenv("HOME", homeDir)

		cfg, err := Load()
		require.NoError(t, err)

		// Observable behavior: Project config wins
		require.NotNil(t, cfg.Server.Port)
		assert.Equal(t, 2222, *cfg.Server.Port)
	})

	t.Run("Environment variable overrides config file value", func(t *testing.T) {
		Reset()
		defer Reset()

		tempDir := t.TempDir()
		cadenceDir := filepath.Join(tempDir, ".cadence")
		require.NoError(t, os.MkdirAll(cadenceDir, 0755))
		require.NoError(t, os.WriteFile(
			filepath.Join(cadenceDir, "cadence.toml"),
			[]byte(`[run]
workers = 3`),
			0644,
		))

		chdir(t, tempDir)
		t.Setenv("HOME", tempDir)
		t.Setenv("CADENCE_RUN_WORKERS", "7")

		cfg, err := Load()
		require.NoError(t, err)

		// Observable behavior: env var beats the file
		assert.Equal(t, 7, cfg.Run.Workers)
	})

	t.Run("HF_API_TOKEN reaches the oracle config", func(t *testing.T) {
		Reset()
		defer Reset()

		tempDir := t.TempDir()
		chdir(t, tempDir)
		t.Setenv("HOME", tempDir)
		t.Setenv("HF_API_TOKEN", "hf_secret")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "hf_secret", cfg.HuggingFace.APIToken)
		assert.True(t, cfg.OracleConfigured())
	})

	t.Run("Introspection lists all active settings", func(t *testing.T) {
		Reset()
		defer Reset()

		tempDir := t.TempDir()
		cadenceDir := filepath.Join(tempDir, ".cadence")
		require.NoError(t, os.MkdirAll(cadenceDir, 0755))
		require.NoError(t, os.WriteFile(
			filepath.Join(cadenceDir, "cadence.toml"),
			[]byte(`[database]
path = "test.db"

[run]
workers = 3`),
			0644,
		))

		chdir(t, tempDir)
		t.Setenv("HOME", tempDir)

		cfg, err := Load()
		require.NoError(t, err)

		intro, err := GetConfigIntrospection()
		require.NoError(t, err)

		settingsMap := make(map[string]interface{})
		for _, s := range intro.Settings {
			settingsMap[s.Key] = s.Value
		}

		// Settings from our file should be there
		assert.Equal(t, "test.db", settingsMap["database.path"])
		assert.Equal(t, int64(3), settingsMap["run.workers"])

		// Default settings should also be there (not just our overrides)
		assert.NotNil(t, settingsMap["run.cost_per_lead_usd"], "Defaults should appear in introspection")

		// What we loaded should match what introspection reports
		assert.Equal(t, cfg.Database.Path, settingsMap["database.path"])
		assert.Equal(t, int64(cfg.Run.Workers), settingsMap["run.workers"])
	})
}

func TestUIConfigPersistence(t *testing.T) {
	t.Run("Dashboard update survives reload", func(t *testing.T) {
		Reset()
		defer Reset()

		tempDir := t.TempDir()
		chdir(t, tempDir)
		t.Setenv("HOME", tempDir)

		require.NoError(t, UpdateOracleModel("mistralai/Mistral-7B-Instruct-v0.3"))

		// A fresh load picks the UI value up
		Reset()
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "mistralai/Mistral-7B-Instruct-v0.3", cfg.HuggingFace.Model)

		// And introspection attributes it to the UI file
		intro, err := GetConfigIntrospection()
		require.NoError(t, err)
		for _, setting := range intro.Settings {
			if setting.Key == "huggingface.model" {
				assert.Equal(t, SourceUserUI, setting.Source)
			}
		}
	})

	t.Run("Repeated saves rotate backups", func(t *testing.T) {
		Reset()
		defer Reset()

		tempDir := t.TempDir()
		chdir(t, tempDir)
		t.Setenv("HOME", tempDir)

		require.NoError(t, UpdateDailyBudget(1.0))
		require.NoError(t, UpdateDailyBudget(2.0))
		require.NoError(t, UpdateDailyBudget(3.0))

		uiPath := GetUIConfigPath()
		require.NotEmpty(t, uiPath)

		// First save had nothing to back up; the next two rotated
		_, err := os.Stat(uiPath + ".back1")
		assert.NoError(t, err, ".back1 should exist")
		_, err = os.Stat(uiPath + ".back2")
		assert.NoError(t, err, ".back2 should exist")
		_, err = os.Stat(uiPath + ".back3")
		assert.True(t, os.IsNotExist(err), ".back3 should not exist yet")

		// Latest value is the live one
		Reset()
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 3.0, cfg.Run.DailyBudgetUSD)
	})

	t.Run("Update keeps sibling settings in the same section", func(t *testing.T) {
		Reset()
		defer Reset()

		tempDir := t.TempDir()
		chdir(t, tempDir)
		t.Setenv("HOME", tempDir)

		require.NoError(t, UpdateRunWorkers(4))
		require.NoError(t, UpdateDailyBudget(2.5))

		Reset()
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 4, cfg.Run.Workers)
		assert.Equal(t, 2.5, cfg.Run.DailyBudgetUSD)
	})
}
