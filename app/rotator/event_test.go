package rotator

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEventFile(t *testing.T) {
	content := `
job: rotator
number: 42
url: https://ci.example.com/job/rotator/42/
completed_at: 2024-03-01T10:30:00Z
compatible: true
components:
  - baseline: 'CR1-1@\myPVob'
    promotion_level: BUILT
    fixed: "false"
  - kind: clearcase-ucm
    baseline: 'CR2-1@\myPVob'
    promotion_level: tested
    fixed: manual
  - baseline: 'CR3-2@\myPVob'
    promotion_level: INITIAL
`
	path := filepath.Join(t.TempDir(), "event.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	event, err := LoadEventFile(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	completion, err := event.Completion()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if completion.Build.ID != "rotator#42" {
		t.Errorf("Expected build id 'rotator#42', got '%s'", completion.Build.ID)
	}
	if !completion.Build.CompletedAt.Equal(time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)) {
		t.Errorf("Unexpected completion time %v", completion.Build.CompletedAt)
	}
	if len(completion.Results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(completion.Results))
	}

	first := completion.Results[0]
	if first.Outcome != Compatible {
		t.Errorf("Expected compatible outcome, got %s", first.Outcome)
	}
	if len(first.Siblings) != 2 || first.Siblings[0].Identity().Name != "CR2-1" || first.Siblings[1].Identity().Name != "CR3-2" {
		t.Errorf("Unexpected siblings for CR1-1: %v", first.Siblings)
	}

	second := completion.Results[1].Component.(*ClearCaseUCMComponent)
	if !second.Fixed || second.PromotionLevel != PromotionTested {
		t.Errorf("Unexpected second component %s", second)
	}
	// A missing fixed value counts as fixed.
	if !completion.Results[2].Component.(*ClearCaseUCMComponent).Fixed {
		t.Error("Expected blank fixed value to mean fixed")
	}
}

func TestLoadEventFileRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event.yml")
	if err := os.WriteFile(path, []byte("build_id: x\ncolour: blue\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadEventFile(path); err == nil {
		t.Error("Expected error for unknown field")
	}
}

func TestCompletionEventValidation(t *testing.T) {
	valid := CompletionEvent{
		BuildID:     "rotator#1",
		CompletedAt: time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
		Components:  []ComponentEvent{{Baseline: `CR1-1@\myPVob`, PromotionLevel: "BUILT"}},
	}
	if _, err := valid.Completion(); err != nil {
		t.Fatalf("Expected valid event, got: %v", err)
	}

	tests := map[string]func(s *CompletionEvent){
		"missing build":      func(s *CompletionEvent) { s.BuildID = "" },
		"missing time":       func(s *CompletionEvent) { s.CompletedAt = time.Time{} },
		"no components":      func(s *CompletionEvent) { s.Components = nil },
		"unknown kind":       func(s *CompletionEvent) { s.Components[0].Kind = "git" },
		"bad baseline":       func(s *CompletionEvent) { s.Components[0].Baseline = "CR1-1" },
		"bad promotion":      func(s *CompletionEvent) { s.Components[0].PromotionLevel = "SHIPPED" },
		"job without number": func(s *CompletionEvent) { s.BuildID = ""; s.Job = "rotator" },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			event := valid
			event.Components = append([]ComponentEvent(nil), valid.Components...)
			mutate(&event)

			if _, err := event.Completion(); err == nil {
				t.Errorf("Expected error for %s", name)
			}
		})
	}
}

func TestNewCompletionSiblings(t *testing.T) {
	a := &ClearCaseUCMComponent{Baseline: "A", PVob: "p", PromotionLevel: PromotionBuilt}
	b := &ClearCaseUCMComponent{Baseline: "B", PVob: "p", PromotionLevel: PromotionBuilt}
	c := &ClearCaseUCMComponent{Baseline: "C", PVob: "p", PromotionLevel: PromotionBuilt}

	completion := NewCompletion(Build{ID: "x"}, Incompatible, []Component{a, b, c})

	expected := map[string][]string{"A": {"B", "C"}, "B": {"A", "C"}, "C": {"A", "B"}}
	for _, r := range completion.Results {
		name := r.Component.Identity().Name
		var got []string
		for _, s := range r.Siblings {
			got = append(got, s.Identity().Name)
		}
		if len(got) != 2 || got[0] != expected[name][0] || got[1] != expected[name][1] {
			t.Errorf("Unexpected siblings for %s: %v", name, got)
		}
		if r.Outcome != Incompatible {
			t.Errorf("Expected incompatible outcome for %s", name)
		}
	}
}

func TestLoadEventDir(t *testing.T) {
	dir := t.TempDir()

	event := func(number int) string {
		return fmt.Sprintf("job: rotator\nnumber: %d\ncompleted_at: 2024-03-01T10:30:00Z\ncomponents:\n  - baseline: 'CR1-1@\\myPVob'\n    promotion_level: BUILT\n", number)
	}

	files := map[string]string{
		"002-second.yml": event(2),
		"001-first.yaml": event(1),
		"notes.txt":      "not an event",
		"003-third.yaml": event(3),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	events, err := LoadEventDir(dir)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}

	for i, e := range events {
		if e.Event.Number != i+1 {
			t.Errorf("Expected event %d to be build %d, got %d (%s)", i, i+1, e.Event.Number, e.Path)
		}
	}
}

func TestLoadEventDirMissing(t *testing.T) {
	events, err := LoadEventDir(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Expected no events, got %d", len(events))
	}
}

func TestLoadEventDirInvalidFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yml"), []byte("unknown_field: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadEventDir(dir); err == nil {
		t.Error("Expected error for invalid event file")
	}
}
