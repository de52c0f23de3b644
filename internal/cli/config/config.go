// Package config loads the dataset manifest describing the tables of one
// aligned volume.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/connectome/emschema/internal/orm/models"
	"github.com/connectome/emschema/internal/orm/schema"
)

// EnvPrefix prefixes environment overrides, e.g. EMSCHEMA_ALIGNED_VOLUME
const EnvPrefix = "EMSCHEMA"

// Config represents a dataset manifest
type Config struct {
	AlignedVolume      string         `mapstructure:"aligned_volume"`
	Version            *int           `mapstructure:"version"` // nil when unversioned
	SegmentationSource string         `mapstructure:"segmentation_source"`
	IncludeContacts    bool           `mapstructure:"include_contacts"`
	WithCRUDColumns    bool           `mapstructure:"with_crud_columns"`
	Tables             []TableConfig  `mapstructure:"tables"`
	Database           DatabaseConfig `mapstructure:"database"`

	// File is the manifest that was read, empty when none was found
	File string `mapstructure:"-"`
}

// TableConfig binds a schema type to a table
type TableConfig struct {
	Schema         string `mapstructure:"schema"`
	Table          string `mapstructure:"table"`
	ReferenceTable string `mapstructure:"reference_table"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// Load reads the manifest at path, or emschema.yaml/emschema.yml from the
// working directory when path is empty. A missing default manifest is not
// an error; a missing explicit one is.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("aligned_volume", "")
	v.SetDefault("segmentation_source", "")
	v.SetDefault("include_contacts", false)
	v.SetDefault("with_crud_columns", true)
	v.SetDefault("database.url", "")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("emschema")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// version has no default, so its env override must be bound explicitly
	if err := v.BindEnv("version"); err != nil {
		return nil, fmt.Errorf("failed to bind version: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DatasetRequest converts the manifest into a compile request
func (c *Config) DatasetRequest() models.DatasetRequest {
	req := models.DatasetRequest{
		AlignedVolume:      c.AlignedVolume,
		SegmentationSource: c.SegmentationSource,
		IncludeContacts:    c.IncludeContacts,
		WithAuditColumns:   c.WithCRUDColumns,
		Metadata:           make(map[string]*schema.TableMetadata),
	}
	for _, t := range c.Tables {
		req.Tables = append(req.Tables, models.SchemaTable{SchemaName: t.Schema, TableName: t.Table})
		if t.ReferenceTable != "" {
			req.Metadata[t.Table] = &schema.TableMetadata{ReferenceTable: t.ReferenceTable}
		}
	}
	return req
}

// HasVersion reports whether the manifest names a version. Version 0 is a
// valid version.
func (c *Config) HasVersion() bool {
	return c.Version != nil
}

// DatabaseName returns the versioned database name, or "" when the
// manifest has no version.
func (c *Config) DatabaseName() string {
	if !c.HasVersion() {
		return ""
	}
	return models.FormatDatabaseName(c.AlignedVolume, *c.Version)
}

// GetDatabaseURL returns the database URL from the environment or the
// manifest. With a version the database of the URL is replaced by the
// versioned database.
func (c *Config) GetDatabaseURL() string {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		url = c.Database.URL
	}
	if url == "" || !c.HasVersion() {
		return url
	}
	return models.FormatVersionDBURI(url, c.AlignedVolume, *c.Version)
}

// FindManifest walks up from the working directory looking for a manifest
func FindManifest() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		for _, name := range []string{"emschema.yaml", "emschema.yml"} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no emschema.yaml found")
		}
		dir = parent
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.HasVersion() && *cfg.Version < 0 {
		return fmt.Errorf("version must not be negative, got: %d", *cfg.Version)
	}
	if cfg.AlignedVolume == "" && (cfg.IncludeContacts || cfg.HasVersion()) {
		return fmt.Errorf("aligned_volume is required when include_contacts or version is set")
	}

	seen := make(map[string]bool, len(cfg.Tables))
	for i, t := range cfg.Tables {
		if t.Schema == "" {
			return fmt.Errorf("tables[%d]: schema is required", i)
		}
		if t.Table == "" {
			return fmt.Errorf("tables[%d]: table is required", i)
		}
		if strings.Contains(t.Table, "__") {
			return fmt.Errorf("tables[%d]: table name %q must not contain \"__\"", i, t.Table)
		}
		if seen[t.Table] {
			return fmt.Errorf("tables[%d]: duplicate table %q", i, t.Table)
		}
		seen[t.Table] = true
	}
	return nil
}
