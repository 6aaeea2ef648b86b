package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/JaimeStill/sdgindex/internal/batch"
)

var errNoResults = errors.New("no batch results found; run `sdgbatch run` first")

// resultsFile is the reviewer's working copy of a batch run.
type resultsFile struct {
	Input   string        `json:"input"`
	Job     batch.Job     `json:"job"`
	Summary batch.Summary `json:"summary"`
}

func readResults(path string) (*resultsFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errNoResults
	}
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}

	var rf resultsFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse results %s: %w", path, err)
	}
	return &rf, nil
}

func writeResults(path string, rf *resultsFile) error {
	rf.Summary = batch.Summarize(rf.Job.Results)

	data, err := json.MarshalIndent(rf, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return os.Rename(tmp, path)
}

// find returns the result for the input row.
func (rf *resultsFile) find(row int) (*batch.Result, error) {
	for i := range rf.Job.Results {
		if rf.Job.Results[i].Input.Row == row {
			return &rf.Job.Results[i], nil
		}
	}
	return nil, fmt.Errorf("row %d not in results", row)
}
