package catalog

import (
	"context"
	"fmt"
	"log"

	"github.com/tessera-io/tessera/internal/config"
	cerr "github.com/tessera-io/tessera/internal/errors"
	"github.com/tessera-io/tessera/internal/segment"
	"github.com/tessera-io/tessera/internal/timebound"
)

// Client is the planning-time handle to the segment catalog. It follows
// an explicit two-phase lifecycle: NewClient validates configuration
// and opens the backend, so every construction failure happens before
// any plan is attempted; a returned Client holds only open, validated
// resources until Close.
//
// A Client is intended as a single planning-time resource. It performs
// at most one sequential catalog query per plan and is not safe for
// concurrent use; callers that plan concurrently must serialize or use
// one Client each.
type Client struct {
	conn Connector
	kind string
}

// NewClient validates the configuration, resolves the backend factory
// from the registry, and opens the connection. An unrecognized backend
// identifier fails here, synchronously, with no partial state.
func NewClient(cfg *config.Config, registry Registry) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.HasCatalog() {
		return nil, cerr.NewConfigError(cerr.CodeNoResolutionSource,
			"no catalog backend configured")
	}

	factory, ok := registry[cfg.Catalog.Kind]
	if !ok {
		return nil, cerr.NewConfigError(cerr.CodeUnknownBackend,
			fmt.Sprintf("unrecognized catalog backend %q", cfg.Catalog.Kind))
	}

	conn, err := factory(cfg)
	if err != nil {
		return nil, err
	}

	log.Printf("catalog: %s backend ready (table base %q)", cfg.Catalog.Kind, cfg.Catalog.TableBase)
	return &Client{conn: conn, kind: cfg.Catalog.Kind}, nil
}

// Kind returns the backend kind identifier.
func (c *Client) Kind() string {
	return c.kind
}

// ResolveSegments returns the published, non-overshadowed descriptors
// of the datasource within the interval. Zero matches is a normal
// empty result, not an error.
func (c *Client) ResolveSegments(ctx context.Context, dataSource string, iv timebound.Interval) ([]segment.Descriptor, error) {
	return c.conn.RetrieveSegments(ctx, dataSource, iv)
}

// Publish writes segment metadata rows through the backend. Failures
// are fatal and propagate; no partial-publish recovery is attempted
// here, since any commit protocol belongs to the host engine.
func (c *Client) Publish(ctx context.Context, segments []segment.Descriptor) error {
	if len(segments) == 0 {
		return nil
	}
	return c.conn.PublishSegments(ctx, segments)
}

// Close releases the backend connection. Safe to call once on every
// exit path, including after a failed query.
func (c *Client) Close() error {
	return c.conn.Close()
}
