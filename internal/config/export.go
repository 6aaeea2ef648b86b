package config

import "os"

const EnvExportSchool = "SDG_EXPORT_SCHOOL"

// ExportConfig holds settings written into exported citations.
type ExportConfig struct {
	School string `toml:"school"`
}

// Finalize applies environment variable overrides.
func (c *ExportConfig) Finalize() {
	if v := os.Getenv(EnvExportSchool); v != "" {
		c.School = v
	}
}

// Merge overwrites non-zero fields from overlay.
func (c *ExportConfig) Merge(overlay *ExportConfig) {
	if overlay.School != "" {
		c.School = overlay.School
	}
}
