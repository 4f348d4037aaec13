package engine

import (
	"context"
	"testing"
	"time"

	"github.com/komyaka/wordstat/internal/events"
	"github.com/komyaka/wordstat/internal/models"
	"github.com/komyaka/wordstat/internal/wordstat"
)

func waitTerminal(t *testing.T, run *Run) models.RunStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s := run.Status(); s.Terminal() {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run %s never reached a terminal state", run.ID)
	return ""
}

func TestRunner_StartToCompletion(t *testing.T) {
	client := &fakeClient{responses: map[string][]wordstat.Row{
		"a": {{Phrase: "a b", Count: 3}},
	}}
	rn := NewRunner(newTestEngine(t, client, fastOpts()), nil)

	run, err := rn.Start(context.Background(), models.RunRequest{Seeds: []string{"a"}, MaxDepth: 0})
	if err != nil {
		t.Fatal(err)
	}
	if run.ID == "" {
		t.Fatal("run has no id")
	}

	if s := waitTerminal(t, run); s != models.StatusCompleted {
		t.Fatalf("status = %s", s)
	}
	if run.FinishedAt().IsZero() {
		t.Error("finishedAt not set on completion")
	}
	results := run.Results()
	if len(results) != 1 || results[0].Phrase != "a b" {
		t.Errorf("results = %+v", results)
	}

	got, ok := rn.Get(run.ID)
	if !ok || got != run {
		t.Error("Get did not return the tracked run")
	}
	if _, ok := rn.Get("no-such-id"); ok {
		t.Error("Get returned a run for an unknown id")
	}
}

func TestRunner_StartRejectsInvalidRequest(t *testing.T) {
	client := &fakeClient{}
	rn := NewRunner(newTestEngine(t, client, fastOpts()), nil)

	if _, err := rn.Start(context.Background(), models.RunRequest{}); err == nil {
		t.Error("empty seed list must be rejected")
	}
	if _, err := rn.Start(context.Background(), models.RunRequest{Seeds: []string{"a"}, MaxDepth: -1}); err == nil {
		t.Error("negative depth must be rejected")
	}
}

func TestRunner_Cancel(t *testing.T) {
	client := &fakeClient{
		started: make(chan string, 4),
		delay:   100 * time.Millisecond,
	}
	rn := NewRunner(newTestEngine(t, client, fastOpts()), nil)

	run, err := rn.Start(context.Background(), models.RunRequest{Seeds: []string{"a", "b"}, MaxDepth: 0})
	if err != nil {
		t.Fatal(err)
	}
	<-client.started

	if !rn.Cancel(run.ID) {
		t.Fatal("Cancel returned false for a tracked run")
	}
	if s := waitTerminal(t, run); s != models.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", s)
	}
	if rn.Cancel("no-such-id") {
		t.Error("Cancel returned true for an unknown id")
	}
}

func TestRun_SubscribeReceivesBacklogAndLive(t *testing.T) {
	client := &fakeClient{
		responses: map[string][]wordstat.Row{"a": nil, "b": nil},
		started:   make(chan string, 4),
		delay:     20 * time.Millisecond,
	}
	rn := NewRunner(newTestEngine(t, client, fastOpts()), nil)

	run, err := rn.Start(context.Background(), models.RunRequest{Seeds: []string{"a", "b"}, MaxDepth: 0})
	if err != nil {
		t.Fatal(err)
	}
	<-client.started

	backlog, live, unsub := run.Subscribe()
	defer unsub()

	var all []events.Event
	all = append(all, backlog...)
	for e := range live {
		all = append(all, e)
	}

	if len(all) == 0 || !all[len(all)-1].Type.Terminal() {
		t.Fatalf("event stream must end with a terminal event, got %+v", all)
	}
	progress := 0
	for _, e := range all {
		if e.Type == events.TypeProgress {
			progress++
		}
	}
	if progress != 2 {
		t.Errorf("progress events = %d, want one per phrase", progress)
	}
}

func TestRun_SubscribeAfterTerminalClosesImmediately(t *testing.T) {
	client := &fakeClient{responses: map[string][]wordstat.Row{"a": nil}}
	rn := NewRunner(newTestEngine(t, client, fastOpts()), nil)

	run, err := rn.Start(context.Background(), models.RunRequest{Seeds: []string{"a"}, MaxDepth: 0})
	if err != nil {
		t.Fatal(err)
	}
	waitTerminal(t, run)

	backlog, live, unsub := run.Subscribe()
	defer unsub()

	if len(backlog) == 0 {
		t.Error("backlog of a finished run must hold the full event log")
	}
	select {
	case _, open := <-live:
		if open {
			t.Error("live channel of a finished run should be closed, not deliver")
		}
	case <-time.After(time.Second):
		t.Error("live channel of a finished run was not closed")
	}
}

func TestRunner_ListNewestFirst(t *testing.T) {
	client := &fakeClient{responses: map[string][]wordstat.Row{"a": nil}}
	rn := NewRunner(newTestEngine(t, client, fastOpts()), nil)

	var runs []*Run
	for i := 0; i < 3; i++ {
		run, err := rn.Start(context.Background(), models.RunRequest{Seeds: []string{"a"}, MaxDepth: 0})
		if err != nil {
			t.Fatal(err)
		}
		runs = append(runs, run)
		time.Sleep(2 * time.Millisecond)
	}
	for _, r := range runs {
		waitTerminal(t, r)
	}

	listed := rn.List()
	if len(listed) != 3 {
		t.Fatalf("list = %d runs, want 3", len(listed))
	}
	for i := 1; i < len(listed); i++ {
		if listed[i].StartedAt.After(listed[i-1].StartedAt) {
			t.Fatal("runs not ordered newest first")
		}
	}
}
