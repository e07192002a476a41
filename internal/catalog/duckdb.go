package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	jsoniter "github.com/json-iterator/go"

	"github.com/strata-lake/strata/strata"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// identPattern restricts namespace and table names to plain SQL
// identifiers; everything else is rejected rather than quoted around.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// metaDDL holds the published definitions. The view layer is derived from
// it and can always be rebuilt.
const metaDDL = `
CREATE TABLE IF NOT EXISTS strata_tables (
    namespace  VARCHAR NOT NULL,
    name       VARCHAR NOT NULL,
    location   VARCHAR NOT NULL,
    columns    VARCHAR NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (namespace, name)
)`

// DuckDB is a strata.Catalog persisted in a DuckDB database. Alongside the
// definitions it maintains one view per published table over the landed
// snapshot files, which is what the query engine resolves names against.
type DuckDB struct {
	db       *sql.DB
	dataRoot string
}

// NewDuckDB opens (or creates) the catalog database at path; empty path
// means in-memory. dataRoot is the filesystem or s3:// root that table
// locations are resolved under when building views.
func NewDuckDB(path, dataRoot string) (*DuckDB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open duckdb: %w", err)
	}
	if _, err := db.Exec(metaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog: init metadata table: %w", err)
	}
	return &DuckDB{db: db, dataRoot: strings.TrimSuffix(dataRoot, "/")}, nil
}

// DB exposes the underlying handle so the query engine can share it.
func (c *DuckDB) DB() *sql.DB { return c.db }

// Close releases the database handle.
func (c *DuckDB) Close() error { return c.db.Close() }

// CreateOrUpdateTable persists def and rebuilds its view.
func (c *DuckDB) CreateOrUpdateTable(ctx context.Context, def strata.TableDefinition, _ strata.UpdatePolicy) error {
	if !identPattern.MatchString(def.Namespace) || !identPattern.MatchString(def.Name) {
		return fmt.Errorf("catalog: invalid table identifier %q.%q", def.Namespace, def.Name)
	}

	cols, err := json.MarshalToString(def.Columns)
	if err != nil {
		return fmt.Errorf("catalog: encode columns: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO strata_tables (namespace, name, location, columns, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		def.Namespace, def.Name, string(def.Location), cols, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("catalog: store definition: %w", err)
	}

	return c.rebuildView(ctx, def)
}

// DescribeTable loads the published definition or strata.ErrTableNotFound.
func (c *DuckDB) DescribeTable(ctx context.Context, namespace, name string) (*strata.TableDefinition, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT location, columns, updated_at FROM strata_tables
		WHERE namespace = ? AND name = ?`, namespace, name)

	var location, cols string
	var updatedAt time.Time
	if err := row.Scan(&location, &cols, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s.%s", strata.ErrTableNotFound, namespace, name)
		}
		return nil, fmt.Errorf("catalog: describe %s.%s: %w", namespace, name, err)
	}

	def := &strata.TableDefinition{
		Namespace: namespace,
		Name:      name,
		Location:  strata.ResourceRef(location),
		UpdatedAt: updatedAt,
	}
	if err := json.UnmarshalFromString(cols, &def.Columns); err != nil {
		return nil, fmt.Errorf("catalog: decode columns for %s.%s: %w", namespace, name, err)
	}
	return def, nil
}

// rebuildView points <namespace>.<name> at the snapshot files under the
// table's location. union_by_name absorbs schema drift across snapshots;
// the published definition stays the authority on the column set.
func (c *DuckDB) rebuildView(ctx context.Context, def strata.TableDefinition) error {
	if _, err := c.db.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %q`, def.Namespace)); err != nil {
		return fmt.Errorf("catalog: create schema %s: %w", def.Namespace, err)
	}

	glob := c.dataRoot + "/" + strings.TrimSuffix(string(def.Location), "/") + "/*.csv*"
	glob = strings.ReplaceAll(glob, "'", "''")

	// read_csv_auto cannot bind against an empty glob. A definition can be
	// published before files are visible at this root; the view appears on
	// the next publish.
	var files int
	row := c.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM glob('%s')`, glob))
	if err := row.Scan(&files); err != nil {
		return fmt.Errorf("catalog: expand %s: %w", glob, err)
	}
	if files == 0 {
		return nil
	}

	stmt := fmt.Sprintf(
		`CREATE OR REPLACE VIEW %q.%q AS SELECT * FROM read_csv_auto('%s', header=true, union_by_name=true)`,
		def.Namespace, def.Name, glob)
	if _, err := c.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("catalog: build view %s.%s: %w", def.Namespace, def.Name, err)
	}
	return nil
}
