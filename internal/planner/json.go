package planner

import (
	"encoding/json"
	"fmt"

	"github.com/tessera-io/tessera/internal/filter"
	"github.com/tessera-io/tessera/internal/segment"
)

// taskEnvelope is the wire form of a ReadTask, used when the plan is
// handed to the host engine's task-distribution mechanism.
type taskEnvelope struct {
	ID       string             `json:"id"`
	Segment  segment.Descriptor `json:"segment"`
	Columns  []string           `json:"columns"`
	Residual []json.RawMessage  `json:"residual,omitempty"`
}

// MarshalJSON serializes the task, encoding residual predicates in
// their tagged form.
func (t ReadTask) MarshalJSON() ([]byte, error) {
	env := taskEnvelope{
		ID:      t.ID,
		Segment: t.Segment,
		Columns: t.Columns,
	}
	for _, pred := range t.Residual {
		raw, err := filter.EncodeJSON(pred)
		if err != nil {
			return nil, fmt.Errorf("planner: task %s: %w", t.ID, err)
		}
		env.Residual = append(env.Residual, raw)
	}
	return json.Marshal(env)
}

// UnmarshalJSON parses a serialized task.
func (t *ReadTask) UnmarshalJSON(data []byte) error {
	var env taskEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("planner: malformed task document: %w", err)
	}
	task := ReadTask{
		ID:      env.ID,
		Segment: env.Segment,
		Columns: env.Columns,
	}
	for _, raw := range env.Residual {
		pred, err := filter.DecodeJSON(raw)
		if err != nil {
			return fmt.Errorf("planner: task %s: %w", env.ID, err)
		}
		task.Residual = append(task.Residual, pred)
	}
	*t = task
	return nil
}
