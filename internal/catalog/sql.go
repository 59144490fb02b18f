package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tessera-io/tessera/internal/config"
	cerr "github.com/tessera-io/tessera/internal/errors"
	"github.com/tessera-io/tessera/internal/segment"
	"github.com/tessera-io/tessera/internal/timebound"
)

// dialect captures what differs between the SQL backends: driver name,
// DSN construction, identifier quoting, placeholder style, and DDL.
type dialect struct {
	kind        string
	driver      string
	createTable string
	quotedEnd   string
	rebind      func(query string) string
	dsn         func(cc config.CatalogConfig) (string, error)
}

// identity keeps ?-style placeholders as-is.
func identity(query string) string { return query }

// dollarRebind rewrites ?-style placeholders to $1..$n for PostgreSQL.
func dollarRebind(query string) string {
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

var mysqlDialect = dialect{
	kind:        KindMySQL,
	driver:      "mysql",
	createTable: segmentsTableMySQL,
	quotedEnd:   "`end`",
	rebind:      identity,
	dsn: func(cc config.CatalogConfig) (string, error) {
		if cc.ConnectURI != "" {
			return cc.ConnectURI, nil
		}
		if cc.Database == "" {
			return "", cerr.NewConfigError(cerr.CodeMissingKey,
				config.KeyCatalogDatabase+" is required for the mysql backend")
		}
		port := cc.Port
		if port == 0 {
			port = 3306
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			cc.User, cc.Password, cc.Host, port, cc.Database), nil
	},
}

var postgresDialect = dialect{
	kind:        KindPostgreSQL,
	driver:      "postgres",
	createTable: segmentsTablePostgres,
	quotedEnd:   `"end"`,
	rebind:      dollarRebind,
	dsn: func(cc config.CatalogConfig) (string, error) {
		if cc.ConnectURI != "" {
			return cc.ConnectURI, nil
		}
		if cc.Database == "" {
			return "", cerr.NewConfigError(cerr.CodeMissingKey,
				config.KeyCatalogDatabase+" is required for the postgresql backend")
		}
		port := cc.Port
		if port == 0 {
			port = 5432
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cc.Host, port, cc.User, cc.Password, cc.Database), nil
	},
}

var sqliteDialect = dialect{
	kind:        KindSQLite,
	driver:      "sqlite3",
	createTable: segmentsTableSQLite,
	quotedEnd:   `"end"`,
	rebind:      identity,
	dsn: func(cc config.CatalogConfig) (string, error) {
		if cc.ConnectURI == "" {
			return "", cerr.NewConfigError(cerr.CodeMissingKey,
				config.KeyCatalogConnectURI+" (database file path) is required for the sqlite backend")
		}
		return cc.ConnectURI + "?_busy_timeout=5000", nil
	},
}

func newMySQLConnector(cfg *config.Config) (Connector, error) {
	return openSQLConnector(cfg, mysqlDialect)
}

func newPostgresConnector(cfg *config.Config) (Connector, error) {
	return openSQLConnector(cfg, postgresDialect)
}

func newSQLiteConnector(cfg *config.Config) (Connector, error) {
	conn, err := openSQLConnector(cfg, sqliteDialect)
	if err != nil {
		return nil, err
	}
	// Embedded databases start empty; the server dialects use the
	// schema owned by the analytics store.
	if err := conn.EnsureSchema(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// sqlConnector implements Connector over database/sql. It is a single
// planning-time resource: concurrent catalog queries on one connector
// are not supported and must be serialized by the caller.
type sqlConnector struct {
	db    *sql.DB
	d     dialect
	table string
}

// openSQLConnector builds the DSN, opens the pool, applies the pool
// settings, and verifies connectivity. A returned connector holds only
// open, validated resources.
func openSQLConnector(cfg *config.Config, d dialect) (*sqlConnector, error) {
	cc := cfg.Catalog

	dsn, err := d.dsn(cc)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, cerr.NewCatalogError(cerr.CodeConnectionFailed,
			fmt.Sprintf("%s: failed to open catalog connection", d.kind), err)
	}

	db.SetMaxOpenConns(cc.Pool.MaxOpenConns)
	db.SetMaxIdleConns(cc.Pool.MaxIdleConns)
	db.SetConnMaxLifetime(cc.Pool.ConnMaxLifetime)
	if d.kind == KindSQLite {
		// Single writer; the embedded driver serializes anyway.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, cerr.NewCatalogError(cerr.CodeConnectionFailed,
			fmt.Sprintf("%s: catalog unreachable", d.kind), err)
	}

	return &sqlConnector{db: db, d: d, table: cc.TableBase}, nil
}

// EnsureSchema creates the segments table and index if absent.
func (c *sqlConnector) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(c.d.createTable, c.table),
		fmt.Sprintf(segmentsIndexSQL, c.table, c.table),
	}
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return cerr.NewCatalogError(cerr.CodeQueryFailed,
				fmt.Sprintf("%s: failed to create catalog schema", c.d.kind), err)
		}
	}
	return nil
}

// RetrieveSegments implements Connector.
func (c *sqlConnector) RetrieveSegments(ctx context.Context, dataSource string, iv timebound.Interval) ([]segment.Descriptor, error) {
	query := c.d.rebind(fmt.Sprintf(
		`SELECT payload FROM %s_segments
		 WHERE datasource = ? AND start >= ? AND %s <= ?
		   AND is_published = 1 AND is_overshadowed = 0
		 ORDER BY start ASC, id ASC`,
		c.table, c.d.quotedEnd))

	rows, err := c.db.QueryContext(ctx, query, dataSource, iv.StartString(), iv.EndString())
	if err != nil {
		return nil, c.queryError(dataSource, iv, err)
	}
	defer rows.Close()

	var segments []segment.Descriptor
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, c.queryError(dataSource, iv, err)
		}
		desc, err := segment.DecodePayload(payload)
		if err != nil {
			return nil, cerr.NewCatalogError(cerr.CodeMalformedPayload,
				fmt.Sprintf("%s: bad segment payload for datasource %q over %s", c.d.kind, dataSource, iv), err)
		}
		segments = append(segments, desc)
	}
	if err := rows.Err(); err != nil {
		return nil, c.queryError(dataSource, iv, err)
	}

	return segments, nil
}

func (c *sqlConnector) queryError(dataSource string, iv timebound.Interval, err error) error {
	return cerr.NewCatalogError(cerr.CodeQueryFailed,
		fmt.Sprintf("%s: segment query for datasource %q over %s failed", c.d.kind, dataSource, iv), err).
		WithDetails(map[string]interface{}{
			"backend":    c.d.kind,
			"datasource": dataSource,
			"interval":   iv.String(),
		})
}

// PublishSegments implements Connector. Each row is upserted
// individually outside a transaction; the first failure aborts.
func (c *sqlConnector) PublishSegments(ctx context.Context, segments []segment.Descriptor) error {
	update := c.d.rebind(fmt.Sprintf(
		`UPDATE %s_segments
		 SET datasource = ?, start = ?, %s = ?, version = ?,
		     is_published = 1, is_overshadowed = 0, payload = ?
		 WHERE id = ?`,
		c.table, c.d.quotedEnd))
	insert := c.d.rebind(fmt.Sprintf(
		`INSERT INTO %s_segments (id, datasource, start, %s, version, is_published, is_overshadowed, payload)
		 VALUES (?, ?, ?, ?, ?, 1, 0, ?)`,
		c.table, c.d.quotedEnd))

	for i := range segments {
		desc := &segments[i]
		payload, err := segment.EncodePayload(desc)
		if err != nil {
			return cerr.NewCatalogError(cerr.CodePublishFailed,
				fmt.Sprintf("%s: cannot serialize segment %s", c.d.kind, desc.ID), err)
		}

		result, err := c.db.ExecContext(ctx, update,
			desc.DataSource, desc.Interval.StartString(), desc.Interval.EndString(),
			desc.Version, payload, desc.ID)
		if err != nil {
			return c.publishError(desc.ID, err)
		}
		affected, _ := result.RowsAffected()
		if affected > 0 {
			continue
		}

		if _, err := c.db.ExecContext(ctx, insert,
			desc.ID, desc.DataSource, desc.Interval.StartString(), desc.Interval.EndString(),
			desc.Version, payload); err != nil {
			return c.publishError(desc.ID, err)
		}
	}
	return nil
}

func (c *sqlConnector) publishError(segmentID string, err error) error {
	return cerr.NewCatalogError(cerr.CodePublishFailed,
		fmt.Sprintf("%s: failed to publish segment %s", c.d.kind, segmentID), err)
}

// Close releases the connection pool.
func (c *sqlConnector) Close() error {
	return c.db.Close()
}
