package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/churnlab/modelregistry/internal/models"
)

// ErrNoCandidates indicates that none of the requested candidate names had a
// metrics record on disk.
var ErrNoCandidates = errors.New("no candidate metrics found")

// StampFormat is the fixed-width UTC timestamp embedded in record filenames.
// Records are named <candidate>_<stamp>.json; because the stamp is fixed-width
// and zero-padded, lexical order equals chronological order.
const StampFormat = "20060102T150405Z"

// Reader loads candidate evaluation records from a metrics directory.
type Reader struct {
	dir string
}

func NewReader(dir string) *Reader {
	return &Reader{dir: dir}
}

// Load returns one candidate per requested name, in request order. For each
// name the newest record is used; names without any valid record are simply
// absent from the result. Load fails with ErrNoCandidates only when the whole
// result would be empty.
func (r *Reader) Load(ctx context.Context, names []string) ([]models.Candidate, error) {
	var out []models.Candidate
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path, ok, err := r.latestRecord(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		cand, err := readRecord(name, path)
		if err != nil {
			return nil, err
		}
		out = append(out, cand)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w for %s in %s", ErrNoCandidates, strings.Join(names, ", "), r.dir)
	}
	return out, nil
}

// latestRecord finds the newest record file for a candidate name. The embedded
// stamp must parse under StampFormat; files with malformed stamps are ignored
// rather than trusted to sort correctly.
func (r *Reader) latestRecord(name string) (string, bool, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read metrics dir %s: %w", r.dir, err)
	}

	prefix := name + "_"
	var matches []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fn := e.Name()
		if !strings.HasPrefix(fn, prefix) || !strings.HasSuffix(fn, ".json") {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(fn, prefix), ".json")
		if _, err := time.Parse(StampFormat, stamp); err != nil {
			continue
		}
		matches = append(matches, fn)
	}
	if len(matches) == 0 {
		return "", false, nil
	}
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	return filepath.Join(r.dir, matches[0]), true, nil
}

// readRecord parses a metrics record, accepting both shapes:
//
//	{"metrics": {"pr_auc": 0.12}, "artifact": "..."}
//	{"pr_auc": 0.12, "artifact": "..."}
//
// Numeric metric values are normalized into Candidate.Metrics; a missing
// artifact reference is left empty here and surfaced at promotion time.
func readRecord(name, path string) (models.Candidate, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return models.Candidate{}, fmt.Errorf("read metrics record %s: %w", path, err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(b, &doc); err != nil {
		return models.Candidate{}, fmt.Errorf("parse metrics record %s: %w", path, err)
	}

	cand := models.Candidate{
		Name:       name,
		Metrics:    map[string]float64{},
		SourcePath: path,
	}
	if ref, ok := doc["artifact"].(string); ok {
		cand.ArtifactRef = ref
	}
	if nested, ok := doc["metrics"].(map[string]interface{}); ok {
		collectNumeric(nested, cand.Metrics)
	} else {
		collectNumeric(doc, cand.Metrics)
	}
	return cand, nil
}

// collectNumeric keeps every value convertible to a float; everything else is
// dropped so a missing metric later scores as 0.0 instead of failing.
func collectNumeric(src map[string]interface{}, dst map[string]float64) {
	for k, v := range src {
		switch n := v.(type) {
		case float64:
			dst[k] = n
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				dst[k] = f
			}
		case bool:
			if n {
				dst[k] = 1
			} else {
				dst[k] = 0
			}
		}
	}
}
