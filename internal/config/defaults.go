package config

// Canonical external binaries, in the order they are reported.
var CanonicalCommands = []string{"git", "mysqldump", "mysql", "cp", "rsync", "composer"}

const (
	// BaseFileName is the required configuration document in the config directory
	BaseFileName = "config.default.yml"
	// EnvPrefix prefixes environment variables forming the last override layer
	EnvPrefix = "CMS_SYNC"
	// EnvSeparator separates path segments in environment variable names
	EnvSeparator = "__"
)

// OverrideFileNames are tried in order; the first existing one is used.
var OverrideFileNames = []string{"config.yml", "config.yaml", "config.toml"}

// DefaultDocument returns the built-in defaults, merged before any file.
func DefaultDocument() Document {
	return Document{
		"commands": map[string]interface{}{
			"git":       command("git", "git --version"),
			"mysqldump": command("mysqldump", "mysqldump --version"),
			"mysql":     command("mysql", "mysql --version"),
			"cp":        command("cp", "whereis cp"),
			"rsync":     command("rsync", "rsync --version"),
			"composer":  command("composer", "composer --version"),
		},
		"db": map[string]interface{}{
			"host":     "localhost",
			"username": "root",
			"probe":    "client",
		},
		"cms": map[string]interface{}{
			"console":   "bin/roadiz",
			"documents": "files",
			"commands": map[string]interface{}{
				"regenerate_sources": "generate:nsentities",
				"update_schema":      "orm:schema-tool:update --dump-sql --force",
				"clear_cache":        "cache:clear",
			},
		},
		"backup": map[string]interface{}{
			"directory":         "backups",
			"compression":       "none",
			"compression_level": 0,
			"storage": map[string]interface{}{
				"provider": "local",
			},
		},
	}
}

func command(path, test string) map[string]interface{} {
	return map[string]interface{}{
		"path": path,
		"test": test,
	}
}
