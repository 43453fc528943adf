package telemetry

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"
)

func snapshot(t *testing.T, frame int, agents ...map[string]any) *structpb.Struct {
	t.Helper()
	list := make([]any, len(agents))
	for i, a := range agents {
		list[i] = a
	}
	s, err := structpb.NewStruct(map[string]any{"frame": frame, "agents": list})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return s
}

func agent(id int, behavior string) map[string]any {
	return map[string]any{
		"id":         id,
		"behavior":   behavior,
		"status":     "",
		"position":   map[string]any{"x": 1.5, "y": 0, "z": -2},
		"velocity":   map[string]any{"x": 0.5, "y": 0, "z": 0.25},
		"nearby":     3,
		"crowded":    1,
		"collided":   0,
		"stickiness": 0.5,
	}
}

func TestRecorder_Record(t *testing.T) {
	var buf bytes.Buffer
	r := NewRecorder(&buf)
	if _, err := uuid.Parse(r.RunID()); err != nil {
		t.Fatalf("run id %q is not a uuid: %v", r.RunID(), err)
	}

	if err := r.Record(snapshot(t, 1, agent(0, "classic"), agent(1, "goal"))); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := r.Record(snapshot(t, 2, agent(0, "classic"))); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if n := strings.Count(buf.String(), "frame,run_id,agent_id"); n != 1 {
		t.Errorf("header written %d times", n)
	}

	var rows []AgentRow
	if err := gocsv.Unmarshal(bytes.NewReader(buf.Bytes()), &rows); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows; want 3", len(rows))
	}
	want := AgentRow{
		Frame: 1, RunID: r.RunID(), AgentID: 1, Behavior: "goal",
		X: 1.5, Z: -2, VX: 0.5, VZ: 0.25,
		Nearby: 3, Crowded: 1, Stickiness: 0.5,
	}
	if rows[1] != want {
		t.Errorf("row = %+v; want %+v", rows[1], want)
	}
	if rows[2].Frame != 2 || rows[2].AgentID != 0 {
		t.Errorf("last row = %+v", rows[2])
	}
}

func TestRecorder_EmptySnapshot(t *testing.T) {
	var buf bytes.Buffer
	r := NewRecorder(&buf)
	if err := r.Record(snapshot(t, 1)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %q for an empty swarm", buf.String())
	}
}

func TestCreate(t *testing.T) {
	r, err := Create("")
	if err != nil || r != nil {
		t.Fatalf("Create(\"\") = %v, %v; want nil, nil", r, err)
	}
	// a nil recorder is a no-op
	if err := r.Record(snapshot(t, 1, agent(0, "curve"))); err != nil {
		t.Errorf("nil Record: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out", "agents.csv")
	if r, err = Create(path); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.Record(snapshot(t, 4, agent(7, "curve"))); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(string(b)), "\n"); len(lines) != 2 {
		t.Errorf("file has %d lines; want header and one row", len(lines))
	}
}
