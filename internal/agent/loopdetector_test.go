package agent

import "testing"

func TestDetectLoopIdenticalCalls(t *testing.T) {
	ld := NewLoopDetector()

	for i := 0; i < 3; i++ {
		ld.Record("Read", `{"path":"a.txt"}`, `{"content":"x"}`, false)
	}

	info := ld.DetectLoop(3)
	if info == nil {
		t.Fatal("expected loop to be detected")
	}
	if info.ToolName != "Read" {
		t.Errorf("ToolName = %q, want Read", info.ToolName)
	}
	if !info.IsSuccess || info.IsError {
		t.Errorf("IsSuccess = %v, IsError = %v, want success loop", info.IsSuccess, info.IsError)
	}
}

func TestDetectLoopDifferentArgs(t *testing.T) {
	ld := NewLoopDetector()

	ld.Record("Read", `{"path":"a.txt"}`, "result", false)
	ld.Record("Read", `{"path":"b.txt"}`, "result", false)
	ld.Record("Read", `{"path":"c.txt"}`, "result", false)

	if info := ld.DetectLoop(3); info != nil {
		t.Errorf("DetectLoop = %+v, want nil for varying args", info)
	}
}

func TestDetectLoopKeyOrderInsensitive(t *testing.T) {
	ld := NewLoopDetector()

	ld.Record("Edit", `{"path":"a.txt","all":true}`, "err", true)
	ld.Record("Edit", `{"all":true,"path":"a.txt"}`, "err", true)
	ld.Record("Edit", `{"path":"a.txt","all":true}`, "err", true)

	info := ld.DetectLoop(3)
	if info == nil {
		t.Fatal("expected loop despite differing key order")
	}
	if !info.IsError {
		t.Error("expected error loop")
	}
}

func TestDetectErrorLoop(t *testing.T) {
	ld := NewLoopDetector()

	ld.Record("Shell", `{"command":"make"}`, "Error: exit 2", true)
	ld.Record("Shell", `{"command":"make -j"}`, "Error: exit 2", true)
	ld.Record("Shell", `{"command":"make all"}`, "Error: exit 2", true)
	ld.Record("Shell", `{"command":"make test"}`, "Error: exit 2", true)

	info := ld.DetectErrorLoop(4)
	if info == nil {
		t.Fatal("expected error loop for repeated failures")
	}
	if info.ToolName != "Shell" || info.Count != 4 {
		t.Errorf("info = %+v, want Shell x4", info)
	}

	// A single success breaks the streak.
	ld.Record("Shell", `{"command":"ls"}`, "ok", false)
	if info := ld.DetectErrorLoop(4); info != nil {
		t.Errorf("DetectErrorLoop after success = %+v, want nil", info)
	}
}

func TestLoopDetectorReset(t *testing.T) {
	ld := NewLoopDetector()
	for i := 0; i < 3; i++ {
		ld.Record("Read", `{"path":"a.txt"}`, "result", false)
	}
	ld.Reset()
	if info := ld.DetectLoop(3); info != nil {
		t.Errorf("DetectLoop after Reset = %+v, want nil", info)
	}
}
