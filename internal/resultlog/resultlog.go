// Package resultlog persists per-question answers as JSONL and the run
// summary as JSON.
package resultlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"foodieqa/internal/model"
)

// Writer appends answers to a JSONL file, flushing after every record so an
// interrupted run keeps everything answered so far.
type Writer struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    *bufio.Writer
}

// Create truncates or creates the log at path
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create log %s: %w", path, err)
	}
	return &Writer{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

// Path returns the file being written
func (lw *Writer) Path() string { return lw.path }

// Append writes one answer
func (lw *Writer) Append(a model.ModelAnswer) error {
	line, err := encodeLine(a)
	if err != nil {
		return err
	}
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if lw.f == nil {
		return fmt.Errorf("log %s is closed", lw.path)
	}
	if _, err := lw.w.Write(line); err != nil {
		return err
	}
	return lw.w.Flush()
}

// Rewrite replaces the file content with answers in the given order. Used
// once at the end of a run so the final log follows input order.
func (lw *Writer) Rewrite(answers []model.ModelAnswer) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if lw.f == nil {
		return fmt.Errorf("log %s is closed", lw.path)
	}
	if err := lw.f.Truncate(0); err != nil {
		return err
	}
	if _, err := lw.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	lw.w.Reset(lw.f)
	for _, a := range answers {
		line, err := encodeLine(a)
		if err != nil {
			return err
		}
		if _, err := lw.w.Write(line); err != nil {
			return err
		}
	}
	return lw.w.Flush()
}

// Close flushes and closes the file
func (lw *Writer) Close() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if lw.f == nil {
		return nil
	}
	err := lw.w.Flush()
	if cerr := lw.f.Close(); err == nil {
		err = cerr
	}
	lw.f = nil
	return err
}

func encodeLine(a model.ModelAnswer) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(a); err != nil {
		return nil, fmt.Errorf("encode answer %s: %w", a.QuestionID, err)
	}
	return buf.Bytes(), nil
}

// ReadAll reads every answer of a JSONL log
func ReadAll(path string) ([]model.ModelAnswer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	defer f.Close()

	var answers []model.ModelAnswer
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var a model.ModelAnswer
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		answers = append(answers, a)
	}
	return answers, sc.Err()
}

// WriteSummary writes the run summary as indented JSON
func WriteSummary(path string, summary *model.RunSummary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// ReadSummary reads a summary written by WriteSummary
func ReadSummary(path string) (*model.RunSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s model.RunSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse summary %s: %w", path, err)
	}
	return &s, nil
}

// LogName is the result file name for a variant
func LogName(variant int, adaptive bool) string {
	if adaptive {
		return "results_adaptive.jsonl"
	}
	return fmt.Sprintf("results_template%d.jsonl", variant)
}

// SummaryName is the summary file name for a variant
func SummaryName(variant int, adaptive bool) string {
	if adaptive {
		return "summary_adaptive.json"
	}
	return fmt.Sprintf("summary_template%d.json", variant)
}
