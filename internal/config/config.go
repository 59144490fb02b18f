// Package config parses the connector's flat property map into a
// validated, typed configuration. Properties are parsed exactly once;
// planning components only ever see the typed form.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	cerr "github.com/tessera-io/tessera/internal/errors"
	"github.com/tessera-io/tessera/internal/segment"
)

// Recognized property keys. Keys under the write prefix are not
// interpreted here; they are retained verbatim for the store's write
// path.
const (
	KeyCatalogKind       = "catalog.kind"
	KeyCatalogHost       = "catalog.host"
	KeyCatalogPort       = "catalog.port"
	KeyCatalogConnectURI = "catalog.connectURI"
	KeyCatalogUser       = "catalog.user"
	KeyCatalogPassword   = "catalog.password"
	KeyCatalogDatabase   = "catalog.database"
	KeyCatalogPoolBlob   = "catalog.poolProperties"
	KeyCatalogTableBase  = "catalog.tableBase"
	KeySegments          = "segments"
	KeyTimeColumn        = "timeColumn"
	KeyCompactEncoding   = "compactEncoding"

	WriteKeyPrefix = "write."
)

// DefaultTimeColumn is the partitioning column assumed when the
// property map does not name one.
const DefaultTimeColumn = "__time"

// Config is the parsed, validated connector configuration.
type Config struct {
	// Catalog holds the metadata backend coordinates. Zero-valued when
	// an explicit segment list bypasses the catalog.
	Catalog CatalogConfig

	// TimeColumn is the partitioning time column name.
	TimeColumn string

	// CompactEncoding is forwarded to the segment reader for
	// specialized aggregator columns; planning does not interpret it.
	CompactEncoding bool

	// ExplicitSegments, when non-nil, is used verbatim by the planner:
	// no bound extraction, no catalog resolution.
	ExplicitSegments []segment.Descriptor

	// WriteThrough carries write-path properties (target version,
	// granularity, shard-spec kind, deep-storage kind, ...) opaquely
	// for the external segment writer.
	WriteThrough map[string]string
}

// CatalogConfig holds the metadata backend connection coordinates.
type CatalogConfig struct {
	// Kind selects the backend dialect: mysql, postgresql, sqlite.
	Kind string

	// Host and Port locate a server-based backend.
	Host string
	Port int

	// ConnectURI, when set, is passed to the driver as-is and takes
	// precedence over Host/Port/Database.
	ConnectURI string

	// User and Password are the backend credentials.
	User     string
	Password string

	// Database names the catalog database for server-based backends.
	Database string

	// TableBase prefixes catalog table names (<TableBase>_segments).
	TableBase string

	// Pool holds connection pool settings.
	Pool PoolConfig
}

// PoolConfig holds connection pool settings, parsed once from the
// poolProperties JSON blob.
type PoolConfig struct {
	MaxOpenConns    int           `json:"maxOpenConns"`
	MaxIdleConns    int           `json:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"-"`

	// ConnMaxLifetimeMillis is the wire form of ConnMaxLifetime.
	ConnMaxLifetimeMillis int64 `json:"connMaxLifetimeMillis"`
}

// DefaultPoolConfig returns the pool settings used when the blob is
// absent.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    8,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// HasCatalog reports whether a metadata backend is configured.
func (c *Config) HasCatalog() bool {
	return c.Catalog.Kind != ""
}

// FromProperties parses the flat property map into a Config and
// validates it. Parsing happens exactly once; the result is immutable
// by convention.
func FromProperties(props map[string]string) (*Config, error) {
	cfg := &Config{
		TimeColumn:   DefaultTimeColumn,
		WriteThrough: make(map[string]string),
	}

	for key, value := range props {
		if strings.HasPrefix(key, WriteKeyPrefix) {
			cfg.WriteThrough[key] = value
			continue
		}
		switch key {
		case KeyCatalogKind:
			cfg.Catalog.Kind = value
		case KeyCatalogHost:
			cfg.Catalog.Host = value
		case KeyCatalogPort:
			port, err := strconv.Atoi(value)
			if err != nil {
				return nil, cerr.NewConfigError(cerr.CodeInvalidValue,
					fmt.Sprintf("%s must be an integer, got %q", KeyCatalogPort, value))
			}
			cfg.Catalog.Port = port
		case KeyCatalogConnectURI:
			cfg.Catalog.ConnectURI = value
		case KeyCatalogUser:
			cfg.Catalog.User = value
		case KeyCatalogPassword:
			cfg.Catalog.Password = value
		case KeyCatalogDatabase:
			cfg.Catalog.Database = value
		case KeyCatalogTableBase:
			cfg.Catalog.TableBase = value
		case KeyCatalogPoolBlob:
			pool, err := parsePoolBlob(value)
			if err != nil {
				return nil, err
			}
			cfg.Catalog.Pool = pool
		case KeySegments:
			segs, err := segment.DecodeList([]byte(value))
			if err != nil {
				return nil, cerr.NewConfigError(cerr.CodeInvalidValue,
					fmt.Sprintf("%s: %v", KeySegments, err))
			}
			cfg.ExplicitSegments = segs
		case KeyTimeColumn:
			cfg.TimeColumn = value
		case KeyCompactEncoding:
			cfg.CompactEncoding = value == "true" || value == "1"
		default:
			// Unknown keys are retained for hand-through rather than
			// rejected, matching the opaque write-path contract.
			cfg.WriteThrough[key] = value
		}
	}

	if cfg.Catalog.Pool == (PoolConfig{}) {
		cfg.Catalog.Pool = DefaultPoolConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parsePoolBlob parses the poolProperties JSON blob.
func parsePoolBlob(blob string) (PoolConfig, error) {
	pool := DefaultPoolConfig()
	if strings.TrimSpace(blob) == "" {
		return pool, nil
	}
	if err := json.Unmarshal([]byte(blob), &pool); err != nil {
		return PoolConfig{}, cerr.NewConfigError(cerr.CodeInvalidValue,
			fmt.Sprintf("%s is not valid JSON: %v", KeyCatalogPoolBlob, err))
	}
	if pool.ConnMaxLifetimeMillis > 0 {
		pool.ConnMaxLifetime = time.Duration(pool.ConnMaxLifetimeMillis) * time.Millisecond
	}
	return pool, nil
}

// Validate checks the configuration before any I/O is attempted.
// A configuration with neither a catalog backend nor an explicit
// segment list cannot resolve segments and is rejected here, never
// deferred to plan time.
func (c *Config) Validate() error {
	if c.TimeColumn == "" {
		return cerr.NewConfigError(cerr.CodeMissingKey, KeyTimeColumn+" must not be empty")
	}

	if c.ExplicitSegments != nil && c.Catalog.Kind == "" {
		// Explicit list bypasses the catalog entirely.
		return nil
	}

	if c.Catalog.Kind == "" {
		return cerr.NewConfigError(cerr.CodeNoResolutionSource,
			fmt.Sprintf("either %s or %s is required", KeyCatalogKind, KeySegments))
	}
	if c.Catalog.TableBase == "" {
		return cerr.NewConfigError(cerr.CodeMissingKey,
			KeyCatalogTableBase+" is required when a catalog backend is configured")
	}
	if c.Catalog.Pool.MaxOpenConns <= 0 {
		return cerr.NewConfigError(cerr.CodeInvalidValue,
			fmt.Sprintf("pool maxOpenConns must be positive, got %d", c.Catalog.Pool.MaxOpenConns))
	}
	return nil
}

// LoadFromFile loads a flat property map from a YAML or JSON file,
// overlays the environment, and parses the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	props := make(map[string]string)
	dot := strings.LastIndex(path, ".")
	if dot < 0 {
		return nil, fmt.Errorf("config: cannot determine format of %s", path)
	}
	switch ext := strings.ToLower(path[dot:]); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &props); err != nil {
			return nil, fmt.Errorf("config: failed to parse YAML %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &props); err != nil {
			return nil, fmt.Errorf("config: failed to parse JSON %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config: unsupported config file format %q", ext)
	}

	LoadFromEnv(props)
	return FromProperties(props)
}

// LoadFromEnv overlays properties from the environment. A variable
// TESSERA_CATALOG_KIND overrides the catalog.kind key, and so on: the
// prefix is stripped, the rest lowercased with underscores mapped to
// dots.
func LoadFromEnv(props map[string]string) {
	const prefix = "TESSERA_"
	for _, entry := range os.Environ() {
		if !strings.HasPrefix(entry, prefix) {
			continue
		}
		kv := strings.SplitN(strings.TrimPrefix(entry, prefix), "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.ReplaceAll(strings.ToLower(kv[0]), "_", ".")
		props[envKeyAlias(key)] = kv[1]
	}
}

// envKeyAlias maps the lowered env form onto the canonical camel-case
// property keys.
func envKeyAlias(key string) string {
	switch key {
	case "catalog.connecturi":
		return KeyCatalogConnectURI
	case "catalog.poolproperties":
		return KeyCatalogPoolBlob
	case "catalog.tablebase":
		return KeyCatalogTableBase
	case "timecolumn":
		return KeyTimeColumn
	case "compactencoding":
		return KeyCompactEncoding
	default:
		return key
	}
}
