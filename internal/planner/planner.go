// Package planner turns a schema, a predicate list, and a segment
// resolution source into an ordered sequence of immutable read tasks,
// one per resolved segment. Tasks carry everything an external worker
// needs; once emitted they share no mutable state with the planner or
// with each other and may be executed in parallel without coordination.
package planner

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/tessera-io/tessera/internal/catalog"
	"github.com/tessera-io/tessera/internal/config"
	cerr "github.com/tessera-io/tessera/internal/errors"
	"github.com/tessera-io/tessera/internal/filter"
	"github.com/tessera-io/tessera/internal/segment"
	"github.com/tessera-io/tessera/internal/timebound"
)

// ReadTask is one unit of work: read one segment, project the given
// columns, and re-apply the residual predicates to the produced rows.
type ReadTask struct {
	// ID identifies the task. Deterministic for a given segment so
	// replanning with identical inputs yields identical tasks.
	ID string

	// Segment locates and describes the data to read.
	Segment segment.Descriptor

	// Columns is the projected column set for this read.
	Columns []string

	// Residual lists the predicates the scan could not evaluate; the
	// caller must re-apply them after reading.
	Residual []filter.Predicate
}

// Plan is the planner's output: the ordered task sequence plus the
// plan-wide pushed predicate set the scan layer evaluates.
type Plan struct {
	// DataSource the plan reads from.
	DataSource string

	// Interval is the catalog query interval the plan was resolved
	// with. Eternity when an explicit segment list bypassed the
	// catalog.
	Interval timebound.Interval

	// Tasks is the ordered read task sequence. Empty when the catalog
	// resolved no segments; that is a normal empty plan, not an error.
	Tasks []ReadTask

	// Pushed lists the predicates the segment scan evaluates itself.
	Pushed []filter.Predicate
}

// Planner resolves segments and emits read plans. Construction fails
// fast when the configuration offers no resolution source at all.
// Planning is single-threaded: one Planner must not be used from
// multiple goroutines concurrently.
type Planner struct {
	cfg    *config.Config
	client *catalog.Client
}

// New creates a Planner. client may be nil only when the configuration
// carries an explicit segment list; a configuration with neither is
// rejected here, before any network attempt.
func New(cfg *config.Config, client *catalog.Client) (*Planner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ExplicitSegments == nil && client == nil {
		return nil, cerr.NewConfigError(cerr.CodeNoResolutionSource,
			"no explicit segment list and no catalog client")
	}
	return &Planner{cfg: cfg, client: client}, nil
}

// Plan computes a read plan for the datasource. projection is the
// column set every emitted task carries; nil projects all of each
// segment's columns. Plan never mutates earlier plans: a changed
// projection means calling Plan again, and the new immutable plan
// replaces the old one wholesale.
//
// Identical inputs against an unchanged catalog produce identical
// plans.
func (p *Planner) Plan(ctx context.Context, dataSource string, projection []string, predicates []filter.Predicate) (*Plan, error) {
	for _, col := range projection {
		if col == "" {
			return nil, cerr.NewPlanError(cerr.CodeInvalidProjection,
				"projection contains an empty column name")
		}
	}

	pushed, residual := filter.Classify(predicates)

	// An explicit segment list is used verbatim: no bound extraction,
	// no catalog resolution, no filtering of the supplied descriptors.
	if p.cfg.ExplicitSegments != nil {
		plan := &Plan{
			DataSource: dataSource,
			Interval:   timebound.Eternity(),
			Pushed:     pushed,
			Tasks:      p.tasks(p.cfg.ExplicitSegments, projection, residual),
		}
		return plan, nil
	}

	bounds := timebound.ExtractAll(pushed, p.cfg.TimeColumn)
	lower, upper := timebound.Reduce(bounds)
	iv := timebound.IntervalFromBounds(lower, upper)

	segments, err := p.client.ResolveSegments(ctx, dataSource, iv)
	if err != nil {
		return nil, err
	}
	log.Printf("planner: resolved %d segment(s) for %q over %s", len(segments), dataSource, iv)

	return &Plan{
		DataSource: dataSource,
		Interval:   iv,
		Pushed:     pushed,
		Tasks:      p.tasks(segments, projection, residual),
	}, nil
}

// tasks builds one task per descriptor, preserving order.
func (p *Planner) tasks(segments []segment.Descriptor, projection []string, residual []filter.Predicate) []ReadTask {
	tasks := make([]ReadTask, 0, len(segments))
	for _, desc := range segments {
		columns := projection
		if columns == nil {
			columns = desc.Columns()
		}
		tasks = append(tasks, ReadTask{
			ID:       taskID(desc.ID),
			Segment:  desc,
			Columns:  columns,
			Residual: residual,
		})
	}
	return tasks
}

// taskID derives a stable identifier from the segment identity.
func taskID(segmentID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("tessera:task:"+segmentID)).String()
}
