package executor

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"   // postgres driver
	_ "github.com/marcboeker/go-duckdb" // duckdb driver
	_ "modernc.org/sqlite"              // SQLite driver (pure Go)
)

// OpenFunc opens a connection pool for an engine DSN.
type OpenFunc func(dsn string) (*sql.DB, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]OpenFunc)
)

func init() {
	RegisterDriver("sqlite", openSQLite)
	RegisterDriver("duckdb", func(dsn string) (*sql.DB, error) {
		return sql.Open("duckdb", dsn)
	})
	RegisterDriver("postgres", func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	})
}

func openSQLite(dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Each connection to an in-memory database is a separate database.
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// RegisterDriver adds an engine driver. Registering an existing name
// replaces it.
func RegisterDriver(name string, open OpenFunc) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = open
}

// Driver retrieves a driver by name.
func Driver(name string) (OpenFunc, bool) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	open, ok := drivers[name]
	return open, ok
}

// ListDrivers returns all registered driver names (sorted).
func ListDrivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens a connection with the named driver.
func Open(driver, dsn string) (*sql.DB, error) {
	open, ok := Driver(driver)
	if !ok {
		return nil, &UnknownDriverError{Driver: driver, Available: ListDrivers()}
	}
	db, err := open(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driver, err)
	}
	return db, nil
}

// UnknownDriverError is returned when an engine names an unregistered driver.
type UnknownDriverError struct {
	Driver    string
	Available []string
}

func (e *UnknownDriverError) Error() string {
	return fmt.Sprintf("unknown engine driver %q\nAvailable drivers: %v\nHint: Check engines[].driver in composer.yaml", e.Driver, e.Available)
}
