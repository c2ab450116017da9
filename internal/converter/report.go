package converter

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

// FileResult records what happened to one input file.
type FileResult struct {
	Input       string        `json:"input"`
	Output      string        `json:"output"`
	OK          bool          `json:"ok"`
	Diagnostics int           `json:"diagnostics"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Report summarizes one conversion run.
type Report struct {
	RunID    string       `json:"runId"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Files    []FileResult `json:"files"`
}

func newReport() *Report {
	return &Report{RunID: newRunID(), Started: time.Now().UTC()}
}

func (r *Report) add(res FileResult) {
	r.Files = append(r.Files, res)
}

// finish stamps the end time and orders results by input path, since workers
// complete in any order.
func (r *Report) finish() {
	r.Finished = time.Now().UTC()
	sort.Slice(r.Files, func(i, j int) bool { return r.Files[i].Input < r.Files[j].Input })
}

// Converted returns how many files were converted successfully.
func (r *Report) Converted() int {
	n := 0
	for _, f := range r.Files {
		if f.OK {
			n++
		}
	}
	return n
}

// Failed returns how many files failed.
func (r *Report) Failed() int {
	return len(r.Files) - r.Converted()
}

// Save writes the report as indented JSON.
func (r *Report) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
