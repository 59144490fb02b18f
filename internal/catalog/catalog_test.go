package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tessera-io/tessera/internal/config"
	cerr "github.com/tessera-io/tessera/internal/errors"
	"github.com/tessera-io/tessera/internal/segment"
	"github.com/tessera-io/tessera/internal/timebound"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		TimeColumn: config.DefaultTimeColumn,
		Catalog: config.CatalogConfig{
			Kind:       KindSQLite,
			ConnectURI: filepath.Join(t.TempDir(), "catalog.db"),
			TableBase:  "druid",
			Pool:       config.DefaultPoolConfig(),
		},
	}
}

func day(y int, m time.Month, d int) int64 {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).UnixMilli()
}

func descriptor(id, dataSource string, start, end int64, version string) segment.Descriptor {
	return segment.Descriptor{
		ID:         id,
		DataSource: dataSource,
		Interval:   timebound.Interval{StartMillis: start, EndMillis: end},
		Version:    version,
		ShardSpec:  segment.NoShard(),
		LoadSpec:   map[string]interface{}{"type": "local", "path": "/tmp/" + id},
		Dimensions: []string{"country"},
		Metrics:    []string{"clicks"},
	}
}

func openTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(sqliteConfig(t), DefaultRegistry())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestPublishAndResolve(t *testing.T) {
	client := openTestClient(t)
	ctx := context.Background()

	segments := []segment.Descriptor{
		descriptor("s1", "clicks", day(2020, 1, 1), day(2020, 1, 2), "v1"),
		descriptor("s2", "clicks", day(2020, 1, 2), day(2020, 1, 3), "v1"),
		descriptor("s3", "clicks", day(2020, 1, 3), day(2020, 1, 4), "v1"),
	}
	if err := client.Publish(ctx, segments); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got, err := client.ResolveSegments(ctx, "clicks", timebound.Eternity())
	if err != nil {
		t.Fatalf("ResolveSegments: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(got))
	}
	for i, want := range []string{"s1", "s2", "s3"} {
		if got[i].ID != want {
			t.Errorf("segment %d = %s, want %s", i, got[i].ID, want)
		}
	}
}

func TestResolveFiltersByInterval(t *testing.T) {
	client := openTestClient(t)
	ctx := context.Background()

	segments := []segment.Descriptor{
		descriptor("s1", "clicks", day(2020, 1, 1), day(2020, 1, 2), "v1"),
		descriptor("s2", "clicks", day(2020, 1, 2), day(2020, 1, 3), "v1"),
		descriptor("s3", "clicks", day(2020, 1, 3), day(2020, 1, 4), "v1"),
	}
	if err := client.Publish(ctx, segments); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// Only segments fully inside [Jan 2, Jan 4) match.
	got, err := client.ResolveSegments(ctx, "clicks", timebound.Interval{
		StartMillis: day(2020, 1, 2),
		EndMillis:   day(2020, 1, 4),
	})
	if err != nil {
		t.Fatalf("ResolveSegments: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(got))
	}
	if got[0].ID != "s2" || got[1].ID != "s3" {
		t.Errorf("got %s, %s", got[0].ID, got[1].ID)
	}
}

func TestResolveFiltersByDataSource(t *testing.T) {
	client := openTestClient(t)
	ctx := context.Background()

	segments := []segment.Descriptor{
		descriptor("c1", "clicks", day(2020, 1, 1), day(2020, 1, 2), "v1"),
		descriptor("i1", "impressions", day(2020, 1, 1), day(2020, 1, 2), "v1"),
	}
	if err := client.Publish(ctx, segments); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got, err := client.ResolveSegments(ctx, "impressions", timebound.Eternity())
	if err != nil {
		t.Fatalf("ResolveSegments: %v", err)
	}
	if len(got) != 1 || got[0].ID != "i1" {
		t.Fatalf("expected only i1, got %v", got)
	}
}

func TestResolveEmptyIsNotAnError(t *testing.T) {
	client := openTestClient(t)

	got, err := client.ResolveSegments(context.Background(), "missing", timebound.Eternity())
	if err != nil {
		t.Fatalf("empty result must not error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no segments, got %d", len(got))
	}
}

func TestPublishUpsert(t *testing.T) {
	client := openTestClient(t)
	ctx := context.Background()

	first := descriptor("s1", "clicks", day(2020, 1, 1), day(2020, 1, 2), "v1")
	if err := client.Publish(ctx, []segment.Descriptor{first}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// Republishing the same id replaces the row rather than duplicating it.
	second := first
	second.Version = "v2"
	if err := client.Publish(ctx, []segment.Descriptor{second}); err != nil {
		t.Fatalf("Publish update: %v", err)
	}

	got, err := client.ResolveSegments(ctx, "clicks", timebound.Eternity())
	if err != nil {
		t.Fatalf("ResolveSegments: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 segment after upsert, got %d", len(got))
	}
	if got[0].Version != "v2" {
		t.Errorf("version = %s, want v2", got[0].Version)
	}
}

func TestPublishEmptyIsNoOp(t *testing.T) {
	client := openTestClient(t)
	if err := client.Publish(context.Background(), nil); err != nil {
		t.Fatalf("empty publish must be a no-op: %v", err)
	}
}

func TestResolveOrdering(t *testing.T) {
	client := openTestClient(t)
	ctx := context.Background()

	// Published out of order; resolution orders by start then id.
	segments := []segment.Descriptor{
		descriptor("b", "clicks", day(2020, 1, 2), day(2020, 1, 3), "v1"),
		descriptor("a", "clicks", day(2020, 1, 2), day(2020, 1, 3), "v1"),
		descriptor("z", "clicks", day(2020, 1, 1), day(2020, 1, 2), "v1"),
	}
	if err := client.Publish(ctx, segments); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got, err := client.ResolveSegments(ctx, "clicks", timebound.Eternity())
	if err != nil {
		t.Fatalf("ResolveSegments: %v", err)
	}
	want := []string{"z", "a", "b"}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("segment %d = %s, want %s", i, got[i].ID, want[i])
		}
	}
}

func TestUnknownBackend(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Catalog.Kind = "oracle"

	_, err := NewClient(cfg, DefaultRegistry())
	if err == nil {
		t.Fatal("expected error for unrecognized backend")
	}
	if cerr.GetCode(err) != cerr.CodeUnknownBackend {
		t.Errorf("code = %s, want %s", cerr.GetCode(err), cerr.CodeUnknownBackend)
	}
}

func TestRegistryInjection(t *testing.T) {
	// An empty registry recognizes nothing, independent of the built-ins.
	cfg := sqliteConfig(t)
	if _, err := NewClient(cfg, Registry{}); err == nil {
		t.Fatal("expected error with an empty registry")
	}

	// A custom registry can substitute a fake for a known kind.
	called := false
	reg := Registry{
		KindSQLite: func(cfg *config.Config) (Connector, error) {
			called = true
			return newSQLiteConnector(cfg)
		},
	}
	client, err := NewClient(cfg, reg)
	if err != nil {
		t.Fatalf("NewClient with custom registry: %v", err)
	}
	defer client.Close()
	if !called {
		t.Error("custom factory was not used")
	}
}

func TestDollarRebind(t *testing.T) {
	got := dollarRebind("SELECT payload FROM t WHERE a = ? AND b >= ? AND c <= ?")
	want := "SELECT payload FROM t WHERE a = $1 AND b >= $2 AND c <= $3"
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}
}

func TestMalformedPayload(t *testing.T) {
	cfg := sqliteConfig(t)
	client, err := NewClient(cfg, DefaultRegistry())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	// Corrupt a row underneath the client.
	conn := client.conn.(*sqlConnector)
	_, err = conn.db.Exec(
		`INSERT INTO druid_segments (id, datasource, start, "end", version, is_published, is_overshadowed, payload)
		 VALUES ('bad', 'clicks', '2020-01-01T00:00:00.000Z', '2020-01-02T00:00:00.000Z', 'v1', 1, 0, 'not json')`)
	if err != nil {
		t.Fatalf("corrupt insert: %v", err)
	}

	_, err = client.ResolveSegments(context.Background(), "clicks", timebound.Eternity())
	if err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if cerr.GetCode(err) != cerr.CodeMalformedPayload {
		t.Errorf("code = %s, want %s", cerr.GetCode(err), cerr.CodeMalformedPayload)
	}
}
