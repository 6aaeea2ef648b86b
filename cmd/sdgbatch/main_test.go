package main

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/JaimeStill/sdgindex/internal/batch"
	"github.com/JaimeStill/sdgindex/internal/checkpoint"
	"github.com/JaimeStill/sdgindex/internal/labels"
	"github.com/JaimeStill/sdgindex/pkg/middleware"
)

const inputCSV = "Last Name,First Name,Year,Title,Abstract\n" +
	"Doe,Jane,2021,Clean Water,water\n" +
	"Roe,Ann,2022,Urban Heat,cities\n" +
	"Poe,Ed,1850,Old Thesis,history\n"

type cliEnv struct {
	dir   string
	input string
	calls *atomic.Int32
}

// setupCLITestEnv runs the CLI from a temp dir against a fake classifier that
// scores "water" abstracts high and everything else low.
func setupCLITestEnv(t *testing.T) *cliEnv {
	t.Helper()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`{}`))
			return
		}
		calls.Add(1)
		var body bytes.Buffer
		body.ReadFrom(r.Body)
		if strings.Contains(body.String(), "water") {
			w.Write([]byte(`{"data":[{"SDG 6":0.92,"SDG 14":0.4}]}`))
			return
		}
		w.Write([]byte(`{"data":[{"SDG 11":0.3}]}`))
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(orig) })

	t.Setenv("SDG_DB_NAME", "sdgindex")
	t.Setenv("SDG_DB_USER", "sdgindex")
	t.Setenv("SDG_CLASSIFIER_ENDPOINT", srv.URL)
	t.Setenv("SDG_BATCH_DELAY", "0s")
	t.Setenv("SDG_AUTH_SIGNING_KEY", "test-key")

	input := filepath.Join(dir, "input.csv")
	if err := os.WriteFile(input, []byte(inputCSV), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	return &cliEnv{dir: dir, input: input, calls: &calls}
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Fatalf("output missing %q:\n%s", want, out)
	}
}

func signToken(t *testing.T, roles ...string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := token.SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestRunWritesResults(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, "run", env.input)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "Completed 2 records")

	if got := env.calls.Load(); got != 2 {
		t.Errorf("classifier calls = %d, want 2 (invalid row skipped)", got)
	}

	rf, err := readResults(defaultResultsPath)
	if err != nil {
		t.Fatalf("readResults: %v", err)
	}
	if rf.Job.State != batch.StateCompleted {
		t.Errorf("state = %s, want completed", rf.Job.State)
	}
	if rf.Summary.Success != 1 || rf.Summary.LowConfidence != 1 {
		t.Errorf("summary = %+v, want 1 success and 1 low confidence", rf.Summary)
	}

	if _, err := os.Stat(filepath.Join(".sdgbatch", "checkpoint.json")); !errors.Is(err, os.ErrNotExist) {
		t.Error("checkpoint should be removed after completion")
	}
}

func TestRunPrivilegedApprovesLowConfidence(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, "run", "--token", signToken(t, "admin"), env.input); err != nil {
		t.Fatalf("run: %v", err)
	}

	rf, err := readResults(defaultResultsPath)
	if err != nil {
		t.Fatalf("readResults: %v", err)
	}
	if !rf.Job.Privileged {
		t.Error("job should be privileged")
	}
	if rf.Summary.Success != 2 {
		t.Errorf("summary = %+v, want 2 successes", rf.Summary)
	}
}

func TestRunRejectsBadToken(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, "run", "--token", "not-a-jwt", env.input)
	if !errors.Is(err, middleware.ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestRunSelectedRows(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, "run", "--rows", "2", env.input); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := env.calls.Load(); got != 1 {
		t.Errorf("classifier calls = %d, want 1", got)
	}

	_, _, err := runCLI(t, "run", "--rows", "3", env.input)
	if !errors.Is(err, batch.ErrInvalidSelection) {
		t.Errorf("err = %v, want ErrInvalidSelection for an invalid row", err)
	}
}

func TestRunResumesCheckpoint(t *testing.T) {
	env := setupCLITestEnv(t)

	// a paused run over both valid rows with the first already classified
	store := checkpoint.NewFile(filepath.Join(".sdgbatch", "checkpoint.json"))
	job := batch.NewJob([]int{0, 1}, false)
	job.State = batch.StatePaused
	job.Processed = 1
	job.Results = []batch.Result{{
		Input:      batch.Input{Row: 1, LastName: "Doe", FirstName: "Jane", Year: "2021", Title: "Clean Water", Abstract: "water"},
		Candidates: []labels.Candidate{{Label: 6, Score: 0.92, Rank: 1}},
		Outcome:    batch.OutcomeSuccess,
	}}
	if err := store.Save(t.Context(), job); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	out, _, err := runCLI(t, "run", env.input)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "Resuming at 1/2")

	if got := env.calls.Load(); got != 1 {
		t.Errorf("classifier calls = %d, want 1", got)
	}
}

func TestRunLocked(t *testing.T) {
	env := setupCLITestEnv(t)

	lock, err := checkpoint.AcquireRunLock(filepath.Join(".sdgbatch", "run.lock"))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer lock.Release()

	_, _, err = runCLI(t, "run", env.input)
	if !errors.Is(err, checkpoint.ErrLocked) {
		t.Errorf("err = %v, want ErrLocked", err)
	}
}

func TestResultsAndEdit(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, "run", env.input); err != nil {
		t.Fatalf("run: %v", err)
	}

	out, _, err := runCLI(t, "results")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	requireContains(t, out, "Clean Water")
	requireContains(t, out, "Urban Heat")

	out, _, err = runCLI(t, "results", "--labels", "6")
	if err != nil {
		t.Fatalf("results --labels: %v", err)
	}
	requireContains(t, out, "Clean Water")
	if strings.Contains(out, "Urban Heat") {
		t.Error("label filter kept a non-matching result")
	}

	out, _, err = runCLI(t, "edit", "2", "--rank", "1", "--label", "13")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	requireContains(t, out, "SDG 13 (edited)")

	rf, err := readResults(defaultResultsPath)
	if err != nil {
		t.Fatalf("readResults: %v", err)
	}
	edited, err := rf.find(2)
	if err != nil {
		t.Fatal(err)
	}
	if !edited.Saveable() {
		t.Error("edited result should be saveable")
	}

	if _, _, err := runCLI(t, "edit", "2", "--rank", "3", "--label", "4"); !errors.Is(err, batch.ErrInvalidEdit) {
		t.Errorf("err = %v, want ErrInvalidEdit for a rank gap", err)
	}
}

func TestResultsWithoutRun(t *testing.T) {
	setupCLITestEnv(t)

	if _, _, err := runCLI(t, "results"); !errors.Is(err, errNoResults) {
		t.Errorf("err = %v, want errNoResults", err)
	}
}

func TestCheckpointShowAndClear(t *testing.T) {
	setupCLITestEnv(t)

	out, _, err := runCLI(t, "checkpoint", "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "No checkpoint.")

	store := checkpoint.NewFile(filepath.Join(".sdgbatch", "checkpoint.json"))
	job := batch.NewJob([]int{0, 1, 2}, false)
	job.State = batch.StateStopped
	if err := store.Save(t.Context(), job); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	out, _, err = runCLI(t, "checkpoint", "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "stopped")
	requireContains(t, strings.ToUpper(out), "REMAINING")

	if _, _, err := runCLI(t, "checkpoint", "clear"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, err := store.Load(t.Context())
	if err != nil || got != nil {
		t.Errorf("after clear: job = %v, err = %v", got, err)
	}
}

func TestFilterByLabels(t *testing.T) {
	results := []batch.Result{
		{Candidates: []labels.Candidate{{Label: 3}, {Label: 7}}},
		{Candidates: []labels.Candidate{{Label: 3}}},
		{Candidates: []labels.Candidate{}},
	}

	set, err := labels.ParseSet("3,7")
	if err != nil {
		t.Fatal(err)
	}
	if got := filterByLabels(results, set); len(got) != 1 {
		t.Errorf("matched %d results, want 1", len(got))
	}
}
