// Package telemetry records swarm snapshots as CSV, one row per agent.
package telemetry

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"
)

// AgentRow is the CSV record of one agent at one frame.
type AgentRow struct {
	Frame      uint64  `csv:"frame"`
	RunID      string  `csv:"run_id"`
	AgentID    int     `csv:"agent_id"`
	Behavior   string  `csv:"behavior"`
	Status     string  `csv:"status"`
	X          float64 `csv:"x"`
	Y          float64 `csv:"y"`
	Z          float64 `csv:"z"`
	VX         float64 `csv:"vx"`
	VY         float64 `csv:"vy"`
	VZ         float64 `csv:"vz"`
	Nearby     int     `csv:"nearby"`
	Crowded    int     `csv:"crowded"`
	Collided   int     `csv:"collided"`
	Stickiness float64 `csv:"stickiness"`
}

// Recorder appends snapshots to a CSV stream. A nil Recorder records nothing.
type Recorder struct {
	w      io.Writer
	closer io.Closer
	runID  string

	headerWritten bool
	rows          []AgentRow
}

// NewRecorder writes to w under a fresh run id.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{w: w, runID: uuid.New().String()}
}

// Create opens path for writing, creating its directory. It returns nil when
// path is empty (recording disabled).
func Create(path string) (*Recorder, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	r := NewRecorder(f)
	r.closer = f
	return r, nil
}

// RunID identifies every row written by this recorder.
func (r *Recorder) RunID() string {
	if r == nil {
		return ""
	}
	return r.runID
}

// Record writes one row per agent of snap.
func (r *Recorder) Record(snap *structpb.Struct) error {
	if r == nil {
		return nil
	}
	fields := snap.GetFields()
	frame := uint64(fields["frame"].GetNumberValue())

	r.rows = r.rows[:0]
	for _, v := range fields["agents"].GetListValue().GetValues() {
		r.rows = append(r.rows, r.row(frame, v.GetStructValue().GetFields()))
	}
	if len(r.rows) == 0 {
		return nil
	}

	if !r.headerWritten {
		if err := gocsv.Marshal(r.rows, r.w); err != nil {
			return fmt.Errorf("writing telemetry: %w", err)
		}
		r.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(r.rows, r.w); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	return nil
}

func (r *Recorder) row(frame uint64, f map[string]*structpb.Value) AgentRow {
	pos := f["position"].GetStructValue().GetFields()
	vel := f["velocity"].GetStructValue().GetFields()
	return AgentRow{
		Frame:      frame,
		RunID:      r.runID,
		AgentID:    int(f["id"].GetNumberValue()),
		Behavior:   f["behavior"].GetStringValue(),
		Status:     f["status"].GetStringValue(),
		X:          pos["x"].GetNumberValue(),
		Y:          pos["y"].GetNumberValue(),
		Z:          pos["z"].GetNumberValue(),
		VX:         vel["x"].GetNumberValue(),
		VY:         vel["y"].GetNumberValue(),
		VZ:         vel["z"].GetNumberValue(),
		Nearby:     int(f["nearby"].GetNumberValue()),
		Crowded:    int(f["crowded"].GetNumberValue()),
		Collided:   int(f["collided"].GetNumberValue()),
		Stickiness: f["stickiness"].GetNumberValue(),
	}
}

// Close closes the file opened by Create.
func (r *Recorder) Close() error {
	if r == nil || r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
