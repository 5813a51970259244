package migration

import (
	"fmt"

	"cms-instance-sync/internal/config"
	apperrors "cms-instance-sync/internal/errors"
	"cms-instance-sync/internal/process"
)

// Toolset holds the configured executables and CMS layout used by the steps
type Toolset struct {
	MysqlDump string
	Mysql     string
	Cp        string
	Rsync     string

	// Console is the CMS console, relative to an instance root
	Console string
	// Documents is the CMS document directory, relative to an instance root
	Documents string

	RegenerateSources []string
	UpdateSchema      []string
	ClearCache        []string
}

// LoadToolset resolves commands.* paths and the cms.* settings
func LoadToolset(resolver *config.Resolver) (Toolset, error) {
	var ts Toolset
	var err error

	paths := []struct {
		key string
		dst *string
	}{
		{"commands.mysqldump.path", &ts.MysqlDump},
		{"commands.mysql.path", &ts.Mysql},
		{"commands.cp.path", &ts.Cp},
		{"commands.rsync.path", &ts.Rsync},
		{"cms.console", &ts.Console},
		{"cms.documents", &ts.Documents},
	}
	for _, p := range paths {
		if *p.dst, err = resolver.String(p.key); err != nil {
			return ts, err
		}
	}

	subcommands := []struct {
		key string
		dst *[]string
	}{
		{"cms.commands.regenerate_sources", &ts.RegenerateSources},
		{"cms.commands.update_schema", &ts.UpdateSchema},
		{"cms.commands.clear_cache", &ts.ClearCache},
	}
	for _, s := range subcommands {
		raw, err := resolver.String(s.key)
		if err != nil {
			return ts, err
		}
		if *s.dst, err = process.SplitCommandLine(raw); err != nil {
			return ts, apperrors.NewAppError(apperrors.ErrorTypeValidation,
				fmt.Sprintf("invalid CMS command in %s", s.key), err).
				WithContext("path", s.key)
		}
	}

	return ts, nil
}
