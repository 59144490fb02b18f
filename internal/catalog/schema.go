package catalog

// DDL for the segments table, per dialect. The catalog schema is owned
// by the analytics store; the connector only creates it for the
// embedded dialect and for integration tests against empty databases.
//
// Interval endpoints are stored as fixed-width ISO-8601 millisecond
// strings so lexicographic comparison matches time ordering.

// segmentsTableSQLite creates the segments table on the embedded
// dialect.
const segmentsTableSQLite = `
CREATE TABLE IF NOT EXISTS %s_segments (
    id TEXT PRIMARY KEY,
    datasource TEXT NOT NULL,
    start TEXT NOT NULL,
    "end" TEXT NOT NULL,
    version TEXT NOT NULL,
    is_published INTEGER NOT NULL DEFAULT 0,
    is_overshadowed INTEGER NOT NULL DEFAULT 0,
    payload BLOB NOT NULL
)`

// segmentsTableMySQL creates the segments table on MySQL.
const segmentsTableMySQL = `
CREATE TABLE IF NOT EXISTS %s_segments (
    id VARCHAR(255) PRIMARY KEY,
    datasource VARCHAR(255) NOT NULL,
    start VARCHAR(32) NOT NULL,
    ` + "`end`" + ` VARCHAR(32) NOT NULL,
    version VARCHAR(128) NOT NULL,
    is_published TINYINT NOT NULL DEFAULT 0,
    is_overshadowed TINYINT NOT NULL DEFAULT 0,
    payload LONGBLOB NOT NULL
)`

// segmentsTablePostgres creates the segments table on PostgreSQL.
const segmentsTablePostgres = `
CREATE TABLE IF NOT EXISTS %s_segments (
    id VARCHAR(255) PRIMARY KEY,
    datasource VARCHAR(255) NOT NULL,
    start VARCHAR(32) NOT NULL,
    "end" VARCHAR(32) NOT NULL,
    version VARCHAR(128) NOT NULL,
    is_published SMALLINT NOT NULL DEFAULT 0,
    is_overshadowed SMALLINT NOT NULL DEFAULT 0,
    payload BYTEA NOT NULL
)`

// segmentsIndexSQL creates the interval-resolution index. The template
// is shared; %s expands to the table base twice.
const segmentsIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_%s_segments_resolve
    ON %s_segments (datasource, start, is_published, is_overshadowed)`
