package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/cadence/errors"
)

// createBackup creates rotating backups (.back1, .back2, .back3) before modifying config
func createBackup(configPath string) error {
	// Check if file exists before backing up
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil // No file to backup
	}

	// Rotate backups: .back3 -> delete, .back2 -> .back3, .back1 -> .back2, current -> .back1
	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	// Delete oldest backup if exists
	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		// Log deletion failures (but don't fail config save)
		fmt.Printf("⚠️  Failed to delete old backup %s: %v\n", back3, err)
	}

	// Rotate .back2 to .back3
	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}

	// Rotate .back1 to .back2
	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	// Copy current to .back1
	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}

	if err := os.WriteFile(back1, content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}

	return nil
}

// GetUIConfigPath returns the path to the UI-managed config file in
// ~/.cadence/cadence_from_ui.toml. Settings changed from the web dashboard
// land here so hand-edited config files are never rewritten by the server.
func GetUIConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cadence", "cadence_from_ui.toml")
}

// loadOrInitializeUIConfig loads the UI config file, or creates an empty one if it doesn't exist
func loadOrInitializeUIConfig() (map[string]interface{}, string, error) {
	configPath := GetUIConfigPath()
	if configPath == "" {
		return nil, "", errors.New("could not determine home directory")
	}

	// Ensure ~/.cadence directory exists
	cadenceDir := filepath.Dir(configPath)
	if err := os.MkdirAll(cadenceDir, 0750); err != nil {
		return nil, "", errors.Wrap(err, "failed to create .cadence directory")
	}

	// Try to read existing config
	var config map[string]interface{}
	if data, err := os.ReadFile(configPath); err == nil {
		// File exists, parse it
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, "", errors.Wrap(err, "failed to parse UI config")
		}
	} else {
		// File doesn't exist, create empty config
		config = make(map[string]interface{})
	}

	return config, configPath, nil
}

// saveUIConfig writes the config to the UI config file with backup
func saveUIConfig(config map[string]interface{}, configPath string) error {
	// Create backup
	if err := createBackup(configPath); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	// Marshal to TOML
	data, err := toml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	// Mark this as our own write to prevent reload loops
	globalWatcherMu.Lock()
	if globalWatcher != nil {
		globalWatcher.MarkOwnWrite()
	}
	globalWatcherMu.Unlock()

	// Write to file
	if err := os.WriteFile(configPath, data, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to write UI config")
	}

	return nil
}

// updateUISetting sets one key inside a section of the UI config and persists it
func updateUISetting(section, key string, value interface{}) error {
	config, configPath, err := loadOrInitializeUIConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load UI config")
	}

	var settings map[string]interface{}
	if s, ok := config[section].(map[string]interface{}); ok {
		settings = s
	} else {
		settings = make(map[string]interface{})
	}

	settings[key] = value
	config[section] = settings

	return saveUIConfig(config, configPath)
}

// UpdateSetting sets a dotted key ("section.key") in the UI config file.
// The value is stored as given; callers parse strings into the type the
// setting expects before handing it over.
func UpdateSetting(dottedKey string, value interface{}) error {
	section, key, ok := strings.Cut(dottedKey, ".")
	if !ok || section == "" || key == "" {
		return errors.NewInvalidRequestError("setting key must be section.key, got: " + dottedKey)
	}
	return updateUISetting(section, key, value)
}

// UpdateOracleModel updates the huggingface.model setting in UI config
func UpdateOracleModel(model string) error {
	return updateUISetting("huggingface", "model", model)
}

// UpdateDefaultVariant updates the agent.default_variant setting in UI config
func UpdateDefaultVariant(variant string) error {
	return updateUISetting("agent", "default_variant", variant)
}

// UpdateRunWorkers updates the run.workers setting in UI config
func UpdateRunWorkers(workers int) error {
	return updateUISetting("run", "workers", workers)
}

// UpdateDailyBudget updates the daily budget in UI config
func UpdateDailyBudget(dailyBudget float64) error {
	return updateUISetting("run", "daily_budget_usd", dailyBudget)
}

// UpdateMonthlyBudget updates the monthly budget in UI config
func UpdateMonthlyBudget(monthlyBudget float64) error {
	return updateUISetting("run", "monthly_budget_usd", monthlyBudget)
}
