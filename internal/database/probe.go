package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	apperrors "cms-instance-sync/internal/errors"
	"cms-instance-sync/internal/logging"
	"cms-instance-sync/internal/process"
)

// Probe reports whether a database exists and accepts the configured credentials
type Probe interface {
	Reachable(ctx context.Context, database string) error
}

const (
	// ProbeClient checks reachability with the mysql command line client
	ProbeClient = "client"
	// ProbeDriver checks reachability with the Go MySQL driver
	ProbeDriver = "driver"
)

// NewProbe builds the probe selected by db.probe
func NewProbe(kind string, conn Connection, runner process.Runner, mysqlPath string, logger *logging.Logger) (Probe, error) {
	switch kind {
	case "", ProbeClient:
		return NewClientProbe(conn, runner, mysqlPath), nil
	case ProbeDriver:
		return NewDriverProbe(conn, logger), nil
	default:
		return nil, apperrors.NewAppError(apperrors.ErrorTypeValidation,
			fmt.Sprintf("unknown db.probe %q (expected client or driver)", kind), nil).
			WithContext("path", "db.probe")
	}
}

// ClientProbe runs `mysql -e "USE db"`
type ClientProbe struct {
	conn      Connection
	runner    process.Runner
	mysqlPath string
}

// NewClientProbe creates a probe invoking the mysql client at mysqlPath
func NewClientProbe(conn Connection, runner process.Runner, mysqlPath string) *ClientProbe {
	return &ClientProbe{conn: conn, runner: runner, mysqlPath: mysqlPath}
}

// Reachable runs a zero-row administrative statement against database
func (p *ClientProbe) Reachable(ctx context.Context, database string) error {
	args := append(p.conn.ClientArgs(), "-e", "USE "+QuoteIdentifier(database))
	_, err := p.runner.Run(ctx, process.Command{
		Name:   "mysql",
		Path:   p.mysqlPath,
		Args:   args,
		Target: database,
	})
	return err
}

// Opener opens a database handle for a DSN
type Opener func(dsn string) (*sql.DB, error)

// DriverProbe connects with the database in the DSN and pings
type DriverProbe struct {
	conn   Connection
	open   Opener
	logger *logging.Logger
}

// NewDriverProbe creates a probe using the registered mysql driver
func NewDriverProbe(conn Connection, logger *logging.Logger) *DriverProbe {
	return NewDriverProbeWithOpener(conn, func(dsn string) (*sql.DB, error) {
		return sql.Open("mysql", dsn)
	}, logger)
}

// NewDriverProbeWithOpener creates a probe with a custom opener
func NewDriverProbeWithOpener(conn Connection, open Opener, logger *logging.Logger) *DriverProbe {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &DriverProbe{conn: conn, open: open, logger: logger}
}

// Reachable pings database; MySQL errors are classified
func (p *DriverProbe) Reachable(ctx context.Context, database string) error {
	startTime := time.Now()

	db, err := p.open(p.conn.DSN(database))
	if err != nil {
		return apperrors.WrapError(err, "failed to open database connection")
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			p.logger.WithField("error", closeErr.Error()).Debug("Failed to close database connection")
		}
	}()

	err = db.PingContext(ctx)

	p.logger.WithFields(map[string]interface{}{
		"host":     p.conn.Host,
		"database": database,
		"success":  err == nil,
		"duration": time.Since(startTime).String(),
	}).Debug("Database probe finished")

	if err != nil {
		appErr := apperrors.NewErrorClassifier().ClassifyError(err)
		return appErr.WithContext("database", database)
	}
	return nil
}
