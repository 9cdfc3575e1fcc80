// Package database opens the SQL connection used by the sql_inter and
// extract_data tools and reads query results into plain tables.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Supported drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// ErrNotConfigured is returned when connection settings are incomplete.
var ErrNotConfigured = errors.New("database connection is not fully configured (HOST, USER, MYSQL_PW, DB_NAME, PORT)")

// Config holds connection settings.
type Config struct {
	Driver   string
	Host     string
	User     string
	Password string
	Name     string
	Port     int
}

// Complete reports whether every connection field is set.
func (c Config) Complete() bool {
	return c.Host != "" && c.User != "" && c.Password != "" && c.Name != "" && c.Port > 0
}

// DSN returns the database/sql driver name and data source name.
func (c Config) DSN() (string, string, error) {
	if !c.Complete() {
		return "", "", ErrNotConfigured
	}
	addr := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))

	switch strings.ToLower(c.Driver) {
	case "", DriverMySQL:
		cfg := mysql.NewConfig()
		cfg.User = c.User
		cfg.Passwd = c.Password
		cfg.Net = "tcp"
		cfg.Addr = addr
		cfg.DBName = c.Name
		cfg.Params = map[string]string{"charset": "utf8mb4"}
		return "mysql", cfg.FormatDSN(), nil
	case DriverPostgres, "pgx":
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.User, c.Password),
			Host:   addr,
			Path:   "/" + c.Name,
		}
		return "pgx", u.String(), nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// Provider hands out the shared connection pool.
type Provider interface {
	DB() (*sql.DB, error)
}

// Pool opens the connection lazily on first use.
type Pool struct {
	cfg  Config
	once sync.Once
	db   *sql.DB
	err  error
}

// NewPool creates a lazily-opened pool for cfg.
func NewPool(cfg Config) *Pool {
	return &Pool{cfg: cfg}
}

// DB returns the shared *sql.DB, opening it on first call.
func (p *Pool) DB() (*sql.DB, error) {
	p.once.Do(func() {
		driver, dsn, err := p.cfg.DSN()
		if err != nil {
			p.err = err
			return
		}
		db, err := sql.Open(driver, dsn)
		if err != nil {
			p.err = fmt.Errorf("failed to open database: %w", err)
			return
		}
		db.SetMaxOpenConns(4)
		db.SetConnMaxIdleTime(5 * time.Minute)
		p.db = db
	})
	return p.db, p.err
}

// Close closes the pool if it was opened.
func (p *Pool) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

// Static wraps an already-open *sql.DB.
type Static struct {
	Conn *sql.DB
}

// DB returns the wrapped connection.
func (s Static) DB() (*sql.DB, error) {
	return s.Conn, nil
}

// Table is a query result held in memory.
type Table struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Column returns the values of the named column.
func (t *Table) Column(name string) ([]interface{}, bool) {
	for i, c := range t.Columns {
		if c == name {
			out := make([]interface{}, len(t.Rows))
			for r, row := range t.Rows {
				out[r] = row[i]
			}
			return out, true
		}
	}
	return nil, false
}

// Query runs query and reads every row into a Table. Byte slices are
// returned as strings so results encode cleanly to JSON.
func Query(ctx context.Context, db *sql.DB, query string) (*Table, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	table := &Table{Columns: cols, Rows: [][]interface{}{}}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		table.Rows = append(table.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return table, nil
}
