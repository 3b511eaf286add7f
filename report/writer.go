package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hairizuan-noorazman/stormbot/logger"
	"github.com/hairizuan-noorazman/stormbot/storage"
)

// Artifacts lists what Write stored. ErrorReport is empty when it was omitted.
type Artifacts struct {
	Dir         string
	Results     string
	ErrorReport string
	AgentReport string
}

// Writer persists reports to blob storage.
type Writer struct {
	storage storage.BlobStorage
	logger  logger.Logger
}

// NewWriter creates a report writer.
func NewWriter(blobStorage storage.BlobStorage, log logger.Logger) *Writer {
	return &Writer{storage: blobStorage, logger: log}
}

// Write stores the results and agent artifacts, plus the error artifact when any
// error was recorded.
func (w *Writer) Write(ctx context.Context, dir string, rep Report) (Artifacts, error) {
	a := Artifacts{Dir: dir}

	var err error
	if a.Results, err = w.put(ctx, dir, ResultsFile, rep); err != nil {
		return a, err
	}
	if er := rep.Errors(); er != nil {
		if a.ErrorReport, err = w.put(ctx, dir, ErrorReportFile, er); err != nil {
			return a, err
		}
	}
	if a.AgentReport, err = w.put(ctx, dir, AgentReportFile, rep.Agents()); err != nil {
		return a, err
	}

	w.logger.Info(ctx, "report written", map[string]interface{}{
		"dir":          w.storage.Location(dir),
		"total_errors": rep.Summary.TotalErrors,
		"error_report": a.ErrorReport != "",
	})
	return a, nil
}

func (w *Writer) put(ctx context.Context, dir, name string, v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", name, err)
	}
	p := path.Join(dir, name)
	if err := w.storage.Write(ctx, p, data); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return p, nil
}

// Entry is one run directory found in storage.
type Entry struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"createdAt"`
	Summary   *Summary  `json:"summary"`
}

// List returns every run directory, newest first. A missing or unreadable results
// file leaves Summary nil.
func List(ctx context.Context, store storage.BlobStorage, log logger.Logger) ([]Entry, error) {
	objects, err := store.List(ctx, DirPrefix)
	if err != nil {
		return nil, err
	}

	created := map[string]time.Time{}
	for _, o := range objects {
		dir, _, _ := strings.Cut(o.Path, "/")
		if t, ok := created[dir]; !ok || o.ModTime.Before(t) {
			created[dir] = o.ModTime
		}
	}
	for dir := range created {
		if t, ok := dirTime(dir); ok {
			created[dir] = t
		}
	}

	entries := make([]Entry, 0, len(created))
	for _, dir := range storage.Dirs(objects) {
		e := Entry{ID: dir, Path: store.Location(dir), CreatedAt: created[dir]}
		var rep struct {
			Summary *Summary `json:"summary"`
		}
		data, err := store.Read(ctx, path.Join(dir, ResultsFile))
		switch {
		case errors.Is(err, storage.ErrFileNotFound):
		case err != nil:
			log.Warn(ctx, "failed to read results", map[string]interface{}{"id": dir, "error": err.Error()})
		default:
			if err := json.Unmarshal(data, &rep); err != nil {
				log.Warn(ctx, "failed to parse results", map[string]interface{}{"id": dir, "error": err.Error()})
			}
			e.Summary = rep.Summary
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID > entries[j].ID
	})
	return entries, nil
}

// dirTime recovers the start time encoded by DirName.
func dirTime(dir string) (time.Time, bool) {
	ms, err := strconv.ParseInt(strings.TrimPrefix(dir, DirPrefix), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

// Detail is every artifact of one run.
type Detail struct {
	ID          string       `json:"id"`
	Results     *Report      `json:"results,omitempty"`
	Errors      *ErrorReport `json:"errors,omitempty"`
	Agents      *AgentReport `json:"agents,omitempty"`
	Screenshots []string     `json:"screenshots"`
}

// ErrReportNotFound is returned by Load for an unknown run directory.
var ErrReportNotFound = errors.New("report not found")

// Load reads every artifact of run directory id.
func Load(ctx context.Context, store storage.BlobStorage, id string) (*Detail, error) {
	if !strings.HasPrefix(id, DirPrefix) || strings.Contains(id, "/") {
		return nil, ErrReportNotFound
	}
	objects, err := store.List(ctx, id+"/")
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, ErrReportNotFound
	}

	d := &Detail{ID: id, Screenshots: []string{}}
	for _, o := range objects {
		if strings.HasSuffix(o.Path, ".png") {
			d.Screenshots = append(d.Screenshots, o.Path)
		}
	}

	d.Results = &Report{}
	if ok, err := readJSON(ctx, store, path.Join(id, ResultsFile), d.Results); err != nil {
		return nil, err
	} else if !ok {
		d.Results = nil
	}
	d.Errors = &ErrorReport{}
	if ok, err := readJSON(ctx, store, path.Join(id, ErrorReportFile), d.Errors); err != nil {
		return nil, err
	} else if !ok {
		d.Errors = nil
	}
	d.Agents = &AgentReport{}
	if ok, err := readJSON(ctx, store, path.Join(id, AgentReportFile), d.Agents); err != nil {
		return nil, err
	} else if !ok {
		d.Agents = nil
	}
	return d, nil
}

func readJSON(ctx context.Context, store storage.BlobStorage, p string, v interface{}) (bool, error) {
	data, err := store.Read(ctx, p)
	if errors.Is(err, storage.ErrFileNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", p, err)
	}
	return true, nil
}
