// Package catalog queries the analytics store's segment metadata
// backend for descriptors overlapping a time interval. The backend is
// one of a closed, pluggable set of SQL dialects behind the Connector
// abstraction; the set is supplied as an explicit registry rather than
// process-global state so tests can substitute fakes.
package catalog

import (
	"context"

	"github.com/tessera-io/tessera/internal/config"
	"github.com/tessera-io/tessera/internal/segment"
	"github.com/tessera-io/tessera/internal/timebound"
)

// Connector is a handle to one segment metadata backend.
type Connector interface {
	// RetrieveSegments returns the published, non-overshadowed segment
	// descriptors of the datasource whose intervals fall within the
	// given bound, ordered by interval start then id.
	RetrieveSegments(ctx context.Context, dataSource string, iv timebound.Interval) ([]segment.Descriptor, error)

	// PublishSegments inserts or updates metadata rows for the given
	// segments. Best-effort and non-transactional: the first failure
	// aborts and propagates, rows already written stay written.
	PublishSegments(ctx context.Context, segments []segment.Descriptor) error

	// Close releases the backend connection pool.
	Close() error
}

// Factory constructs a Connector from a validated configuration. The
// factory opens and verifies the connection; a returned Connector is
// ready for queries.
type Factory func(cfg *config.Config) (Connector, error)

// Registry maps backend kind identifiers to connector factories. It is
// injected at client construction time.
type Registry map[string]Factory

// Backend kind identifiers of the built-in dialects.
const (
	KindMySQL      = "mysql"
	KindPostgreSQL = "postgresql"
	KindSQLite     = "sqlite"
)

// DefaultRegistry returns the closed set of built-in backends: two
// relational server dialects plus the embedded dialect used for tests
// and local development.
func DefaultRegistry() Registry {
	return Registry{
		KindMySQL:      newMySQLConnector,
		KindPostgreSQL: newPostgresConnector,
		KindSQLite:     newSQLiteConnector,
	}
}
