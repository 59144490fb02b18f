package segment

import (
	"fmt"
	"strings"

	"github.com/spaolacci/murmur3"
)

// Shard spec kinds. The set is closed; an unrecognized kind fails
// descriptor validation.
const (
	// ShardNone marks an unsharded interval (single segment).
	ShardNone = "none"
	// ShardNumbered splits an interval into a fixed number of shards.
	ShardNumbered = "numbered"
	// ShardLinear appends shards without a fixed total.
	ShardLinear = "linear"
	// ShardHashed routes rows by a hash of the partition dimensions.
	ShardHashed = "hashed"
)

// ShardSpec describes how one time interval is split across segments.
// Written by the store's write path; the connector only needs it to
// hand through and to route rows when publishing.
type ShardSpec struct {
	// Kind is one of the shard spec kinds above.
	Kind string `json:"type"`

	// PartitionNum is this shard's position within the interval.
	PartitionNum int `json:"partitionNum"`

	// Partitions is the shard count for numbered and hashed kinds.
	Partitions int `json:"partitions,omitempty"`

	// PartitionDimensions are the columns hashed by the hashed kind.
	// Empty means all dimensions.
	PartitionDimensions []string `json:"partitionDimensions,omitempty"`
}

// NoShard returns the spec for an unsharded interval.
func NoShard() ShardSpec {
	return ShardSpec{Kind: ShardNone}
}

// Validate checks kind membership and kind-specific fields.
func (s ShardSpec) Validate() error {
	switch s.Kind {
	case ShardNone:
		return nil
	case ShardLinear:
		if s.PartitionNum < 0 {
			return fmt.Errorf("shard spec: negative partition number %d", s.PartitionNum)
		}
		return nil
	case ShardNumbered, ShardHashed:
		if s.Partitions <= 0 {
			return fmt.Errorf("shard spec: %s kind requires a positive partition count, got %d", s.Kind, s.Partitions)
		}
		if s.PartitionNum < 0 || s.PartitionNum >= s.Partitions {
			return fmt.Errorf("shard spec: partition number %d out of range [0,%d)", s.PartitionNum, s.Partitions)
		}
		return nil
	default:
		return fmt.Errorf("shard spec: unrecognized kind %q", s.Kind)
	}
}

// RoutePartition computes the shard a row belongs to from its partition
// dimension values. Only meaningful for the hashed kind; other kinds
// route everything to this spec's own partition.
func (s ShardSpec) RoutePartition(dimensionValues []string) int {
	if s.Kind != ShardHashed || s.Partitions <= 0 {
		return s.PartitionNum
	}
	h := murmur3.Sum32([]byte(strings.Join(dimensionValues, "\x1f")))
	return int(h % uint32(s.Partitions))
}
