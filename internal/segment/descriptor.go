// Package segment models the immutable segment descriptors published by
// the analytics store's write path. The connector reads descriptors
// from the catalog; it never mutates one.
package segment

import (
	"encoding/json"
	"fmt"

	"github.com/tessera-io/tessera/internal/timebound"
)

// Descriptor identifies one immutable, versioned, time-bounded chunk of
// columnar data and where to load it from. It is the unit of work the
// planner emits one read task for.
type Descriptor struct {
	// ID uniquely identifies the segment within its datasource.
	ID string `json:"id"`

	// DataSource names the table-like collection the segment belongs to.
	DataSource string `json:"dataSource"`

	// Interval is the half-open [start, end) time range the segment covers.
	Interval timebound.Interval `json:"interval"`

	// Version orders segments covering the same interval; a newer
	// version overshadows older ones.
	Version string `json:"version"`

	// ShardSpec describes how the interval is split across segments.
	ShardSpec ShardSpec `json:"shardSpec"`

	// BinaryVersion is the native segment format version.
	BinaryVersion int `json:"binaryVersion"`

	// Size is the approximate segment size in bytes.
	Size int64 `json:"size"`

	// LoadSpec locates the physical segment data (deep storage kind
	// plus kind-specific coordinates). Treated as opaque by planning.
	LoadSpec map[string]interface{} `json:"loadSpec"`

	// Dimensions lists the dimension column names.
	Dimensions []string `json:"dimensions"`

	// Metrics lists the metric column names.
	Metrics []string `json:"metrics"`
}

// Validate checks the fields planning depends on.
func (d *Descriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("segment: descriptor missing id")
	}
	if d.DataSource == "" {
		return fmt.Errorf("segment %s: descriptor missing datasource", d.ID)
	}
	if d.Interval.IsEmpty() {
		return fmt.Errorf("segment %s: empty interval %s", d.ID, d.Interval)
	}
	if err := d.ShardSpec.Validate(); err != nil {
		return fmt.Errorf("segment %s: %w", d.ID, err)
	}
	return nil
}

// Overlaps reports whether the segment's interval shares any instant
// with the given interval.
func (d *Descriptor) Overlaps(iv timebound.Interval) bool {
	return d.Interval.Overlaps(iv)
}

// Columns returns the dimension and metric column names in descriptor
// order, dimensions first.
func (d *Descriptor) Columns() []string {
	cols := make([]string, 0, len(d.Dimensions)+len(d.Metrics))
	cols = append(cols, d.Dimensions...)
	cols = append(cols, d.Metrics...)
	return cols
}

// EncodePayload serializes a descriptor into the backend-agnostic
// payload document stored in the catalog's segments table.
func EncodePayload(d *Descriptor) ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("segment: failed to encode payload for %s: %w", d.ID, err)
	}
	return data, nil
}

// DecodePayload parses a catalog payload document back into a
// descriptor and validates it.
func DecodePayload(data []byte) (Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return Descriptor{}, fmt.Errorf("segment: malformed payload: %w", err)
	}
	if err := d.Validate(); err != nil {
		return Descriptor{}, fmt.Errorf("segment: invalid payload: %w", err)
	}
	return d, nil
}

// DecodeList parses a serialized descriptor array, the form used by the
// explicit segment list configuration key.
func DecodeList(data []byte) ([]Descriptor, error) {
	var ds []Descriptor
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("segment: malformed descriptor list: %w", err)
	}
	for i := range ds {
		if err := ds[i].Validate(); err != nil {
			return nil, fmt.Errorf("segment: invalid descriptor at index %d: %w", i, err)
		}
	}
	return ds, nil
}
