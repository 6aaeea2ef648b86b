package batch_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JaimeStill/sdgindex/internal/batch"
	"github.com/JaimeStill/sdgindex/internal/labels"
)

type mockClient struct {
	connectFn  func(ctx context.Context) error
	classifyFn func(ctx context.Context, text string) ([]labels.Prediction, error)
}

func (m *mockClient) Connect(ctx context.Context) error {
	if m.connectFn == nil {
		return nil
	}
	return m.connectFn(ctx)
}

func (m *mockClient) Classify(ctx context.Context, text string) ([]labels.Prediction, error) {
	return m.classifyFn(ctx, text)
}

type failingStore struct {
	batch.MemoryStore
	loadErr error
}

func (s *failingStore) Load(ctx context.Context) (*batch.Job, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.MemoryStore.Load(ctx)
}

type countingStore struct {
	batch.MemoryStore
	saves atomic.Int32
}

func (s *countingStore) Save(ctx context.Context, job batch.Job) error {
	s.saves.Add(1)
	return s.MemoryStore.Save(ctx, job)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeInputs(n int) []batch.Input {
	inputs := make([]batch.Input, n)
	for i := range inputs {
		inputs[i] = batch.Input{
			Row:       i + 1,
			LastName:  "Doe",
			FirstName: "Jane",
			Year:      "2021",
			Title:     fmt.Sprintf("Thesis %d", i),
			Abstract:  fmt.Sprintf("abstract-%d", i),
		}
	}
	return inputs
}

func selectAll(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}

// scores returns deterministic predictions per abstract: even rows qualify, odd rows do not.
func scores(_ context.Context, text string) ([]labels.Prediction, error) {
	var n int
	fmt.Sscanf(text, "abstract-%d", &n)
	score := 0.5
	if n%2 == 0 {
		score = 0.9
	}
	return []labels.Prediction{
		{Label: fmt.Sprintf("SDG %d", n%16+1), Score: score},
		{Label: "SDG 16", Score: 0.1},
	}, nil
}

func newController(client *mockClient, store batch.CheckpointStore, every int) (*batch.Controller, *atomic.Int32) {
	cfg := batch.Config{Delay: "400ms", CheckpointEvery: every}
	if err := cfg.Finalize(nil); err != nil {
		panic(err)
	}

	c := batch.New(client, store, cfg, discardLogger())

	var sleeps atomic.Int32
	c.SetClock(
		func(_ context.Context, d time.Duration) {
			if d != 400*time.Millisecond {
				panic(fmt.Sprintf("unexpected delay %s", d))
			}
			sleeps.Add(1)
		},
		func() time.Time { return time.UnixMilli(1_700_000_000_000) },
	)
	return c, &sleeps
}

func TestRunCompletes(t *testing.T) {
	store := batch.NewMemoryStore()
	c, sleeps := newController(&mockClient{classifyFn: scores}, store, 25)
	inputs := makeInputs(4)

	job, err := c.Prepare(context.Background(), []int{3, 1, 2}, false, batch.ResumeContinue)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	job, err = c.Run(context.Background(), job, inputs)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if job.State != batch.StateCompleted || job.Processed != 3 || job.Total != 3 {
		t.Errorf("job = state %s processed %d total %d", job.State, job.Processed, job.Total)
	}

	wantRows := []int{4, 2, 3}
	wantOutcomes := []batch.Outcome{batch.OutcomeLowConfidence, batch.OutcomeLowConfidence, batch.OutcomeSuccess}
	for i, r := range job.Results {
		if r.Input.Row != wantRows[i] {
			t.Errorf("result %d row = %d, want %d", i, r.Input.Row, wantRows[i])
		}
		if r.Outcome != wantOutcomes[i] {
			t.Errorf("result %d outcome = %s, want %s", i, r.Outcome, wantOutcomes[i])
		}
	}

	if sleeps.Load() != 2 {
		t.Errorf("delays = %d, want 2 (none after the last record)", sleeps.Load())
	}

	if cp, _ := store.Load(context.Background()); cp != nil {
		t.Error("checkpoint kept after completion")
	}
}

func TestRunPrivilegedOutcome(t *testing.T) {
	c, _ := newController(&mockClient{classifyFn: scores}, batch.NewMemoryStore(), 25)

	job, _ := c.Prepare(context.Background(), []int{1}, true, batch.ResumeRestart)
	job, err := c.Run(context.Background(), job, makeInputs(2))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if job.Results[0].Outcome != batch.OutcomeSuccess {
		t.Errorf("outcome = %s, want success for privileged caller", job.Results[0].Outcome)
	}
}

func TestRunDedupesCandidates(t *testing.T) {
	client := &mockClient{
		classifyFn: func(context.Context, string) ([]labels.Prediction, error) {
			return []labels.Prediction{
				{Label: "SDG 3: Good Health", Score: 0.9},
				{Label: "Goal 3", Score: 0.8},
				{Label: "SDG 7", Score: 0.4},
			}, nil
		},
	}
	c, _ := newController(client, batch.NewMemoryStore(), 25)

	job, _ := c.Prepare(context.Background(), []int{0}, false, batch.ResumeRestart)
	job, err := c.Run(context.Background(), job, makeInputs(1))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := job.Results[0].Candidates
	want := []labels.Candidate{
		{Label: 3, Score: 0.9, Rank: 1},
		{Label: 7, Score: 0.4, Rank: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("candidates = %+v, want %+v", got, want)
	}
}

func TestRunRecordsClassifierErrors(t *testing.T) {
	client := &mockClient{
		classifyFn: func(ctx context.Context, text string) ([]labels.Prediction, error) {
			if text == "abstract-2" {
				return nil, errors.New("upstream timeout")
			}
			return scores(ctx, text)
		},
	}
	c, _ := newController(client, batch.NewMemoryStore(), 25)
	inputs := makeInputs(5)

	job, _ := c.Prepare(context.Background(), selectAll(5), false, batch.ResumeContinue)
	job, err := c.Run(context.Background(), job, inputs)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if job.State != batch.StateCompleted || len(job.Results) != 5 {
		t.Fatalf("job = state %s results %d, want completed with 5", job.State, len(job.Results))
	}

	failed := job.Results[2]
	if failed.Outcome != batch.OutcomeError || failed.Error == "" {
		t.Errorf("failed result = %+v, want error outcome with message", failed)
	}
	for i, r := range job.Results {
		if i != 2 && r.Outcome == batch.OutcomeError {
			t.Errorf("result %d = error, want only row 3 to fail", i)
		}
	}

	if s := batch.Summarize(job.Results); s.Error != 1 || s.Success+s.LowConfidence != 4 {
		t.Errorf("summary = %+v", s)
	}
}

func TestRunFailsWhenClassifierUnreachable(t *testing.T) {
	client := &mockClient{
		connectFn: func(context.Context) error { return errors.New("dial tcp: refused") },
		classifyFn: func(context.Context, string) ([]labels.Prediction, error) {
			t.Fatal("Classify called after failed connect")
			return nil, nil
		},
	}
	c, _ := newController(client, batch.NewMemoryStore(), 25)

	job, _ := c.Prepare(context.Background(), selectAll(2), false, batch.ResumeContinue)
	job, err := c.Run(context.Background(), job, makeInputs(2))

	if !errors.Is(err, batch.ErrClassifierUnavailable) {
		t.Fatalf("Run() error = %v, want ErrClassifierUnavailable", err)
	}
	if job.State != batch.StateFailed {
		t.Errorf("state = %s, want failed", job.State)
	}
}

func TestPauseResumeMatchesUninterrupted(t *testing.T) {
	inputs := makeInputs(7)
	selection := []int{6, 0, 5, 1, 4, 2, 3}

	for pauseAt := range len(selection) {
		t.Run(fmt.Sprintf("pause after %d", pauseAt+1), func(t *testing.T) {
			ref, _ := newController(&mockClient{classifyFn: scores}, batch.NewMemoryStore(), 25)
			want, _ := ref.Prepare(context.Background(), selection, false, batch.ResumeRestart)
			want, _ = ref.Run(context.Background(), want, inputs)

			store := batch.NewMemoryStore()
			var c *batch.Controller
			calls := 0
			client := &mockClient{
				classifyFn: func(ctx context.Context, text string) ([]labels.Prediction, error) {
					if calls == pauseAt {
						c.Signals().Pause()
					}
					calls++
					return scores(ctx, text)
				},
			}
			c, _ = newController(client, store, 25)

			job, _ := c.Prepare(context.Background(), selection, false, batch.ResumeContinue)
			job, err := c.Run(context.Background(), job, inputs)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if pauseAt == len(selection)-1 {
				if job.State != batch.StateCompleted {
					t.Fatalf("state = %s, want completed when pause lands after last record", job.State)
				}
			} else {
				if job.State != batch.StatePaused || job.Processed != pauseAt+1 {
					t.Fatalf("state = %s processed = %d, want paused at %d", job.State, job.Processed, pauseAt+1)
				}

				cp := c.Resumable(context.Background(), selection)
				if cp == nil || cp.Processed != pauseAt+1 {
					t.Fatalf("checkpoint = %+v, want processed %d", cp, pauseAt+1)
				}

				job, err = c.Prepare(context.Background(), selection, false, batch.ResumeContinue)
				if err != nil {
					t.Fatalf("Prepare() error = %v", err)
				}
				job, err = c.Run(context.Background(), job, inputs)
				if err != nil {
					t.Fatalf("resume Run() error = %v", err)
				}
			}

			if calls != len(selection) {
				t.Errorf("classifier calls = %d, want %d (no record classified twice)", calls, len(selection))
			}
			if !reflect.DeepEqual(job.Results, want.Results) {
				t.Errorf("resumed results differ from uninterrupted run")
			}
		})
	}
}

func TestPausedJobResumesInProcess(t *testing.T) {
	var c *batch.Controller
	client := &mockClient{
		classifyFn: func(ctx context.Context, text string) ([]labels.Prediction, error) {
			if text == "abstract-0" {
				c.Signals().Pause()
			}
			return scores(ctx, text)
		},
	}
	c, _ = newController(client, batch.NewMemoryStore(), 25)

	job, _ := c.Prepare(context.Background(), selectAll(3), false, batch.ResumeContinue)
	job, _ = c.Run(context.Background(), job, makeInputs(3))
	if job.State != batch.StatePaused {
		t.Fatalf("state = %s, want paused", job.State)
	}

	job, err := c.Run(context.Background(), job, makeInputs(3))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if job.State != batch.StateCompleted || len(job.Results) != 3 {
		t.Errorf("state = %s results = %d", job.State, len(job.Results))
	}
}

func TestStopKeepsCheckpoint(t *testing.T) {
	store := batch.NewMemoryStore()
	var c *batch.Controller
	client := &mockClient{
		classifyFn: func(ctx context.Context, text string) ([]labels.Prediction, error) {
			if text == "abstract-1" {
				c.Signals().Stop()
			}
			return scores(ctx, text)
		},
	}
	c, _ = newController(client, store, 25)

	job, _ := c.Prepare(context.Background(), selectAll(4), false, batch.ResumeContinue)
	job, err := c.Run(context.Background(), job, makeInputs(4))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if job.State != batch.StateStopped || job.Processed != 2 {
		t.Fatalf("state = %s processed = %d, want stopped at 2", job.State, job.Processed)
	}

	cp, _ := store.Load(context.Background())
	if cp == nil || cp.Processed != 2 || len(cp.Results) != 2 || cp.Timestamp != 1_700_000_000_000 {
		t.Errorf("checkpoint = %+v", cp)
	}

	if _, err := c.Run(context.Background(), job, makeInputs(4)); !errors.Is(err, batch.ErrInvalidTransition) {
		t.Errorf("Run() on stopped job error = %v, want ErrInvalidTransition", err)
	}
}

func TestStopPausedJob(t *testing.T) {
	c, _ := newController(&mockClient{classifyFn: scores}, batch.NewMemoryStore(), 25)

	job := batch.NewJob([]int{0}, false)
	if _, err := c.Stop(context.Background(), job); !errors.Is(err, batch.ErrInvalidTransition) {
		t.Errorf("Stop() on idle job error = %v, want ErrInvalidTransition", err)
	}

	job.State = batch.StatePaused
	job, err := c.Stop(context.Background(), job)
	if err != nil || job.State != batch.StateStopped {
		t.Errorf("Stop() = %s, %v", job.State, err)
	}
}

func TestCancelActsAsStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var classifyCtxErr error
	client := &mockClient{
		classifyFn: func(cctx context.Context, text string) ([]labels.Prediction, error) {
			if text == "abstract-0" {
				cancel()
			}
			classifyCtxErr = cctx.Err()
			return scores(cctx, text)
		},
	}
	store := batch.NewMemoryStore()
	c, _ := newController(client, store, 25)

	job, _ := c.Prepare(ctx, selectAll(3), false, batch.ResumeContinue)
	job, err := c.Run(ctx, job, makeInputs(3))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if job.State != batch.StateStopped || job.Processed != 1 {
		t.Errorf("state = %s processed = %d, want stopped at 1", job.State, job.Processed)
	}
	if classifyCtxErr != nil {
		t.Errorf("in-flight classify saw cancellation: %v", classifyCtxErr)
	}
	if cp, _ := store.Load(context.Background()); cp == nil {
		t.Error("no checkpoint saved on cancel")
	}
}

func TestPeriodicCheckpoint(t *testing.T) {
	store := &countingStore{}
	var c *batch.Controller
	var seen []int
	client := &mockClient{
		classifyFn: func(ctx context.Context, text string) ([]labels.Prediction, error) {
			if cp, _ := store.Load(ctx); cp != nil {
				seen = append(seen, cp.Processed)
			} else {
				seen = append(seen, 0)
			}
			return scores(ctx, text)
		},
	}
	c, _ = newController(client, store, 2)

	job, _ := c.Prepare(context.Background(), selectAll(5), false, batch.ResumeContinue)
	if _, err := c.Run(context.Background(), job, makeInputs(5)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if store.saves.Load() != 2 {
		t.Errorf("saves = %d, want 2 (after records 2 and 4)", store.saves.Load())
	}
	if want := []int{0, 0, 2, 2, 4}; !reflect.DeepEqual(seen, want) {
		t.Errorf("checkpoint progression = %v, want %v", seen, want)
	}
}

func TestResumable(t *testing.T) {
	selection := []int{0, 1, 2}
	good := batch.NewJob(selection, false)
	good.Processed = 1
	good.Results = []batch.Result{{Outcome: batch.OutcomeSuccess}}

	inconsistent := good
	inconsistent.Results = nil

	tests := []struct {
		name    string
		stored  *batch.Job
		loadErr error
		want    bool
	}{
		{"absent", nil, nil, false},
		{"matching", &good, nil, true},
		{"other selection", func() *batch.Job { j := batch.NewJob([]int{2, 1, 0}, false); return &j }(), nil, false},
		{"inconsistent", &inconsistent, nil, false},
		{"unreadable", nil, errors.New("corrupt checkpoint"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &failingStore{loadErr: tt.loadErr}
			if tt.stored != nil {
				store.Save(context.Background(), *tt.stored)
			}
			c, _ := newController(&mockClient{classifyFn: scores}, store, 25)

			got := c.Resumable(context.Background(), selection)
			if (got != nil) != tt.want {
				t.Errorf("Resumable() = %+v, want present %v", got, tt.want)
			}

			job, err := c.Prepare(context.Background(), selection, false, batch.ResumeContinue)
			if err != nil {
				t.Fatalf("Prepare() error = %v", err)
			}
			wantProcessed := 0
			if tt.want {
				wantProcessed = 1
			}
			if job.Processed != wantProcessed || job.State != batch.StateIdle {
				t.Errorf("Prepare() processed = %d state = %s", job.Processed, job.State)
			}
		})
	}
}

func TestPrepareRestartClears(t *testing.T) {
	store := batch.NewMemoryStore()
	cp := batch.NewJob([]int{0}, false)
	cp.Processed = 1
	cp.Results = []batch.Result{{}}
	store.Save(context.Background(), cp)

	c, _ := newController(&mockClient{classifyFn: scores}, store, 25)

	job, err := c.Prepare(context.Background(), []int{0}, false, batch.ResumeRestart)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if job.Processed != 0 {
		t.Errorf("processed = %d, want 0", job.Processed)
	}
	if got, _ := store.Load(context.Background()); got != nil {
		t.Error("checkpoint not cleared on restart")
	}
}

func TestRunRejectsBadSelection(t *testing.T) {
	c, _ := newController(&mockClient{classifyFn: scores}, batch.NewMemoryStore(), 25)

	if _, err := c.Prepare(context.Background(), nil, false, batch.ResumeContinue); !errors.Is(err, batch.ErrEmptySelection) {
		t.Errorf("Prepare() error = %v, want ErrEmptySelection", err)
	}

	job := batch.NewJob([]int{0, 9}, false)
	if _, err := c.Run(context.Background(), job, makeInputs(2)); !errors.Is(err, batch.ErrInvalidSelection) {
		t.Errorf("Run() error = %v, want ErrInvalidSelection", err)
	}
}
