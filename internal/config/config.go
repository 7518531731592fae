package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultSankhyaBaseURL is the production Sankhya gateway.
const DefaultSankhyaBaseURL = "https://api.sankhya.com.br"

// Config represents the application configuration
type Config struct {
	OdooURL      string `yaml:"odoo_url"`
	OdooDB       string `yaml:"odoo_db"`
	OdooUser     string `yaml:"odoo_user"`
	OdooPassword string `yaml:"odoo_password"`

	SankhyaBaseURL  string `yaml:"sankhya_base_url"`
	SankhyaAppKey   string `yaml:"sankhya_appkey"`
	SankhyaToken    string `yaml:"sankhya_token"`
	SankhyaUser     string `yaml:"sankhya_username"`
	SankhyaPassword string `yaml:"sankhya_password"`

	JournalPath string `yaml:"journal_path"`
	LogLevel    string `yaml:"log_level"`
	Output      string `yaml:"output"`
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables
// 2. ./.env (dotenv) - walks up parent directories to find it
// 3. ~/.config/snkbridge/config.yaml (YAML)
//
// Environment variable names match the ones operators already keep in their
// .env files (ODOO_EMAIL, ODOO_SENHA, SANKHYA_*), so an existing deployment
// needs no migration.
func Load() (*Config, error) {
	cfg := &Config{
		SankhyaBaseURL: DefaultSankhyaBaseURL,
		LogLevel:       "info",
		Output:         "table",
	}

	// Load .env if it exists (walking up parent directories)
	if envPath := findDotEnv(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	// Load ~/.config/snkbridge/config.yaml if it exists
	if err := loadYAMLConfig(cfg); err != nil {
		// YAML config is optional, so we don't fail if it doesn't exist
	}

	// Override with environment variables
	if v := os.Getenv("ODOO_URL"); v != "" {
		cfg.OdooURL = v
	}
	if v := os.Getenv("ODOO_DB"); v != "" {
		cfg.OdooDB = v
	}
	if v := os.Getenv("ODOO_EMAIL"); v != "" {
		cfg.OdooUser = v
	}
	if v := getEnvOrFile("ODOO_SENHA", "ODOO_SENHA_FILE"); v != "" {
		cfg.OdooPassword = v
	}
	if v := os.Getenv("SANKHYA_AUTH_BASE_URL"); v != "" {
		cfg.SankhyaBaseURL = v
	}
	if v := os.Getenv("SANKHYA_APPKEY"); v != "" {
		cfg.SankhyaAppKey = v
	}
	if v := getEnvOrFile("SANKHYA_TOKEN", "SANKHYA_TOKEN_FILE"); v != "" {
		cfg.SankhyaToken = v
	}
	if v := os.Getenv("SANKHYA_USERNAME"); v != "" {
		cfg.SankhyaUser = v
	}
	if v := getEnvOrFile("SANKHYA_PASSWORD", "SANKHYA_PASSWORD_FILE"); v != "" {
		cfg.SankhyaPassword = v
	}
	if v := os.Getenv("SNKBRIDGE_JOURNAL"); v != "" {
		cfg.JournalPath = v
	}
	if v := os.Getenv("SNKBRIDGE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SNKBRIDGE_OUTPUT"); v != "" {
		cfg.Output = v
	}

	if cfg.JournalPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.JournalPath = filepath.Join(homeDir, ".local", "share", "snkbridge", "journal.db")
	}

	return cfg, nil
}

// ValidateOdoo verifies the Odoo credentials are present.
func (c *Config) ValidateOdoo() error {
	missing := missingKeys(map[string]string{
		"ODOO_URL":   c.OdooURL,
		"ODOO_DB":    c.OdooDB,
		"ODOO_EMAIL": c.OdooUser,
		"ODOO_SENHA": c.OdooPassword,
	})
	if len(missing) > 0 {
		return fmt.Errorf("odoo configuration incomplete: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// ValidateSankhya verifies the Sankhya credentials are present.
func (c *Config) ValidateSankhya() error {
	missing := missingKeys(map[string]string{
		"SANKHYA_APPKEY":   c.SankhyaAppKey,
		"SANKHYA_TOKEN":    c.SankhyaToken,
		"SANKHYA_USERNAME": c.SankhyaUser,
		"SANKHYA_PASSWORD": c.SankhyaPassword,
	})
	if len(missing) > 0 {
		return fmt.Errorf("sankhya configuration incomplete: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func missingKeys(keys map[string]string) []string {
	var missing []string
	for name, val := range keys {
		if val == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// loadYAMLConfig loads configuration from ~/.config/snkbridge/config.yaml
func loadYAMLConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(homeDir, ".config", "snkbridge", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}

	return ""
}

// findDotEnv searches for .env starting from cwd and walking up parent
// directories. Stops at the user's home directory.
// Returns the path to .env if found, empty string otherwise.
func findDotEnv() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, just check cwd
		if _, err := os.Stat(".env"); err == nil {
			return ".env"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Clean paths for reliable comparison
	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}

		// Stop if we've reached home directory
		if dir == homeDir {
			break
		}

		// Get parent directory
		parent := filepath.Dir(dir)

		// Stop if we've reached the filesystem root
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}
