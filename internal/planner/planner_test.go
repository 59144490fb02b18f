package planner

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tessera-io/tessera/internal/catalog"
	"github.com/tessera-io/tessera/internal/config"
	"github.com/tessera-io/tessera/internal/filter"
	"github.com/tessera-io/tessera/internal/segment"
	"github.com/tessera-io/tessera/internal/timebound"
)

func day(y int, m time.Month, d int) int64 {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).UnixMilli()
}

func descriptor(id string, start, end int64) segment.Descriptor {
	return segment.Descriptor{
		ID:         id,
		DataSource: "clicks",
		Interval:   timebound.Interval{StartMillis: start, EndMillis: end},
		Version:    "v1",
		ShardSpec:  segment.NoShard(),
		LoadSpec:   map[string]interface{}{"type": "local", "path": "/tmp/" + id},
		Dimensions: []string{"country", "url"},
		Metrics:    []string{"clicks"},
	}
}

// catalogFixture publishes three consecutive daily segments and returns
// a planner backed by an embedded catalog.
func catalogFixture(t *testing.T) *Planner {
	t.Helper()

	cfg := &config.Config{
		TimeColumn: config.DefaultTimeColumn,
		Catalog: config.CatalogConfig{
			Kind:       catalog.KindSQLite,
			ConnectURI: filepath.Join(t.TempDir(), "catalog.db"),
			TableBase:  "druid",
			Pool:       config.DefaultPoolConfig(),
		},
	}

	client, err := catalog.NewClient(cfg, catalog.DefaultRegistry())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	segments := []segment.Descriptor{
		descriptor("s1", day(2019, 12, 31), day(2020, 1, 1)),
		descriptor("s2", day(2020, 1, 1), day(2020, 1, 2)),
		descriptor("s3", day(2020, 1, 2), day(2020, 1, 3)),
	}
	if err := client.Publish(context.Background(), segments); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	p, err := New(cfg, client)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func explicitFixture(t *testing.T) *Planner {
	t.Helper()

	cfg := &config.Config{
		TimeColumn: config.DefaultTimeColumn,
		ExplicitSegments: []segment.Descriptor{
			descriptor("s1", day(2019, 12, 31), day(2020, 1, 1)),
			descriptor("s2", day(2020, 1, 1), day(2020, 1, 2)),
			descriptor("s3", day(2020, 1, 2), day(2020, 1, 3)),
		},
	}
	p, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestPlanExplicitSegments(t *testing.T) {
	p := explicitFixture(t)

	plan, err := p.Plan(context.Background(), "clicks", nil, nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if len(plan.Tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(plan.Tasks))
	}
	for i, want := range []string{"s1", "s2", "s3"} {
		if plan.Tasks[i].Segment.ID != want {
			t.Errorf("task %d segment = %s, want %s", i, plan.Tasks[i].Segment.ID, want)
		}
		if len(plan.Tasks[i].Residual) != 0 {
			t.Errorf("task %d has unexpected residual", i)
		}
	}
	if plan.Interval != timebound.Eternity() {
		t.Errorf("explicit plan interval = %s, want eternity", plan.Interval)
	}
}

// An explicit list is used verbatim: even a predicate that would narrow
// the catalog interval must not filter the supplied descriptors.
func TestPlanExplicitSegmentsIgnoreTimeBounds(t *testing.T) {
	p := explicitFixture(t)

	pred := filter.GreaterOrEqual{Field: "__time", Value: day(2020, 1, 2)}
	plan, err := p.Plan(context.Background(), "clicks", nil, []filter.Predicate{pred})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Tasks) != 3 {
		t.Fatalf("expected all 3 explicit segments, got %d tasks", len(plan.Tasks))
	}
	if len(plan.Pushed) != 1 {
		t.Errorf("time predicate should still be classified as pushed")
	}
}

func TestPlanCatalogTimePruning(t *testing.T) {
	p := catalogFixture(t)

	// Jan 2 midnight: only the third daily segment starts at or after it.
	pred := filter.GreaterOrEqual{Field: "__time", Value: day(2020, 1, 2)}
	plan, err := p.Plan(context.Background(), "clicks", nil, []filter.Predicate{pred})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if len(plan.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(plan.Tasks))
	}
	if plan.Tasks[0].Segment.ID != "s3" {
		t.Errorf("task segment = %s, want s3", plan.Tasks[0].Segment.ID)
	}
	if len(plan.Tasks[0].Residual) != 0 {
		t.Errorf("time predicate must not become residual")
	}
	if len(plan.Pushed) != 1 {
		t.Errorf("expected 1 pushed predicate, got %d", len(plan.Pushed))
	}
}

// Predicates supplied as JSON documents (the CLI's filter file, task
// round-trips) must prune the catalog interval exactly like in-process
// predicate values.
func TestPlanCatalogTimePruningFromJSON(t *testing.T) {
	p := catalogFixture(t)

	doc := `{"type":"greaterOrEqual","field":"__time","value":1577923200000}`
	pred, err := filter.DecodeJSON([]byte(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	plan, err := p.Plan(context.Background(), "clicks", nil, []filter.Predicate{pred})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Tasks) != 1 || plan.Tasks[0].Segment.ID != "s3" {
		t.Fatalf("decoded predicate did not prune: %d tasks", len(plan.Tasks))
	}
}

func TestPlanCatalogUnconstrained(t *testing.T) {
	p := catalogFixture(t)

	plan, err := p.Plan(context.Background(), "clicks", nil, nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(plan.Tasks))
	}
	if plan.Interval != timebound.Eternity() {
		t.Errorf("unconstrained interval = %s, want eternity", plan.Interval)
	}
}

func TestPlanResidualSeparation(t *testing.T) {
	p := catalogFixture(t)

	predicates := []filter.Predicate{
		filter.Equal{Field: "country", Value: "US"},
		filter.IsNull{Field: "url"},
	}
	plan, err := p.Plan(context.Background(), "clicks", nil, predicates)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if len(plan.Pushed) != 1 || plan.Pushed[0].String() != "country = 'US'" {
		t.Errorf("pushed = %v", plan.Pushed)
	}
	for _, task := range plan.Tasks {
		if len(task.Residual) != 1 || task.Residual[0].String() != "url IS NULL" {
			t.Errorf("task %s residual = %v", task.ID, task.Residual)
		}
	}
}

func TestPlanProjection(t *testing.T) {
	p := catalogFixture(t)
	ctx := context.Background()

	all, err := p.Plan(ctx, "clicks", nil, nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	wantAll := []string{"country", "url", "clicks"}
	if len(all.Tasks[0].Columns) != len(wantAll) {
		t.Fatalf("nil projection columns = %v", all.Tasks[0].Columns)
	}
	for i := range wantAll {
		if all.Tasks[0].Columns[i] != wantAll[i] {
			t.Errorf("column %d = %s, want %s", i, all.Tasks[0].Columns[i], wantAll[i])
		}
	}

	// A changed projection is a fresh plan, not a mutation of the old one.
	narrow, err := p.Plan(ctx, "clicks", []string{"country"}, nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(narrow.Tasks[0].Columns) != 1 || narrow.Tasks[0].Columns[0] != "country" {
		t.Errorf("projected columns = %v", narrow.Tasks[0].Columns)
	}
	if len(all.Tasks[0].Columns) != 3 {
		t.Errorf("earlier plan was mutated: %v", all.Tasks[0].Columns)
	}
}

func TestPlanIdempotent(t *testing.T) {
	p := catalogFixture(t)
	ctx := context.Background()

	predicates := []filter.Predicate{
		filter.GreaterOrEqual{Field: "__time", Value: day(2020, 1, 1)},
		filter.Equal{Field: "country", Value: "US"},
	}

	first, err := p.Plan(ctx, "clicks", []string{"country"}, predicates)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	second, err := p.Plan(ctx, "clicks", []string{"country"}, predicates)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if len(first.Tasks) != len(second.Tasks) {
		t.Fatalf("task counts differ: %d != %d", len(first.Tasks), len(second.Tasks))
	}
	for i := range first.Tasks {
		if first.Tasks[i].ID != second.Tasks[i].ID {
			t.Errorf("task %d id differs: %s != %s", i, first.Tasks[i].ID, second.Tasks[i].ID)
		}
		if first.Tasks[i].Segment.ID != second.Tasks[i].Segment.ID {
			t.Errorf("task %d segment differs", i)
		}
	}
}

// The explicit-list and catalog paths must agree: planning over a
// catalog seeded with exactly the explicit segments resolves the same
// segment set.
func TestPlanResolutionPathsConsistent(t *testing.T) {
	ctx := context.Background()

	explicit, err := explicitFixture(t).Plan(ctx, "clicks", nil, nil)
	if err != nil {
		t.Fatalf("explicit Plan: %v", err)
	}
	resolved, err := catalogFixture(t).Plan(ctx, "clicks", nil, nil)
	if err != nil {
		t.Fatalf("catalog Plan: %v", err)
	}

	if len(explicit.Tasks) != len(resolved.Tasks) {
		t.Fatalf("segment sets differ: %d explicit, %d resolved", len(explicit.Tasks), len(resolved.Tasks))
	}
	for i := range explicit.Tasks {
		if explicit.Tasks[i].Segment.ID != resolved.Tasks[i].Segment.ID {
			t.Errorf("segment %d differs: %s != %s",
				i, explicit.Tasks[i].Segment.ID, resolved.Tasks[i].Segment.ID)
		}
		if explicit.Tasks[i].ID != resolved.Tasks[i].ID {
			t.Errorf("task id %d differs between resolution paths", i)
		}
	}
}

func TestPlanEmptyResultIsNotAnError(t *testing.T) {
	p := catalogFixture(t)

	plan, err := p.Plan(context.Background(), "missing", nil, nil)
	if err != nil {
		t.Fatalf("empty plan must not error: %v", err)
	}
	if len(plan.Tasks) != 0 {
		t.Errorf("expected no tasks, got %d", len(plan.Tasks))
	}
}

func TestPlanRejectsEmptyProjectionColumn(t *testing.T) {
	p := explicitFixture(t)
	if _, err := p.Plan(context.Background(), "clicks", []string{"country", ""}, nil); err == nil {
		t.Fatal("expected error for empty column name in projection")
	}
}

func TestNewRejectsNoSource(t *testing.T) {
	cfg := &config.Config{TimeColumn: config.DefaultTimeColumn}
	if _, err := New(cfg, nil); err == nil {
		t.Fatal("expected error for configuration with no resolution source")
	}
}

func TestTaskIDDeterministic(t *testing.T) {
	a := taskID("clicks_2020-01-01_v1_0")
	b := taskID("clicks_2020-01-01_v1_0")
	c := taskID("clicks_2020-01-02_v1_0")
	if a != b {
		t.Error("same segment must yield the same task id")
	}
	if a == c {
		t.Error("different segments must yield different task ids")
	}
}
