package database

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"cms-instance-sync/internal/config"
	apperrors "cms-instance-sync/internal/errors"
)

const defaultPort = 3306

// Connection holds the credentials shared by every mysql/mysqldump invocation
type Connection struct {
	Host     string
	Username string
	Password string
	// Port is 0 when the client default applies
	Port int
}

// PasswordPrompt supplies db.password when it is not configured
type PasswordPrompt func() (string, error)

// LoadConnection reads db.host, db.username, db.password and db.port.
// A missing db.password is an error unless prompt is given.
func LoadConnection(resolver *config.Resolver, prompt PasswordPrompt) (Connection, error) {
	var conn Connection
	var err error

	if conn.Host, err = resolver.String("db.host"); err != nil {
		return conn, err
	}
	if conn.Username, err = resolver.String("db.username"); err != nil {
		return conn, err
	}

	conn.Password, err = resolver.String("db.password")
	if apperrors.IsType(err, apperrors.ErrorTypeConfigKeyNotFound) && prompt != nil {
		conn.Password, err = prompt()
	}
	if err != nil {
		return conn, err
	}

	port, err := resolver.StringOr("db.port", "")
	if err != nil {
		return conn, err
	}
	if port != "" {
		if conn.Port, err = strconv.Atoi(port); err != nil {
			return conn, apperrors.NewAppError(apperrors.ErrorTypeValidation,
				fmt.Sprintf("db.port %q is not a number", port), err).
				WithContext("path", "db.port")
		}
	}

	return conn, conn.Validate()
}

// Validate checks that the connection parameters are usable
func (c Connection) Validate() error {
	var problems []string

	if c.Host == "" {
		problems = append(problems, "host is required")
	}
	if c.Username == "" {
		problems = append(problems, "username is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		problems = append(problems, "port must be between 1 and 65535")
	}

	if len(problems) > 0 {
		return apperrors.NewAppError(apperrors.ErrorTypeValidation,
			fmt.Sprintf("database configuration validation failed: %s", strings.Join(problems, ", ")), nil)
	}
	return nil
}

// ClientArgs returns the connection flags for mysql and mysqldump.
// The password flag is omitted when empty so the client never prompts.
func (c Connection) ClientArgs() []string {
	args := []string{"-h" + c.Host, "-u" + c.Username}
	if c.Password != "" {
		args = append(args, "-p"+c.Password)
	}
	if c.Port > 0 {
		args = append(args, "-P"+strconv.Itoa(c.Port))
	}
	return args
}

// DSN returns the Go MySQL driver data source name for database
func (c Connection) DSN(database string) string {
	port := c.Port
	if port == 0 {
		port = defaultPort
	}

	cfg := mysql.NewConfig()
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(port))
	cfg.DBName = database
	cfg.Timeout = 10 * time.Second
	return cfg.FormatDSN()
}

// QuoteIdentifier quotes a database name for use in SQL
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
