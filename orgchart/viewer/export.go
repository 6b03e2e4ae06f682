package viewer

import (
	"path/filepath"

	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart/fileutils"
)

// Export file names.
const (
	DataFile        = "viewer_data.json"
	ManualDataFile  = "viewer_manual_data.json"
	MatchReviewFile = "viewer_match_review.json"
	FailuresFile    = "context_failures.json"
	AutoMapFile     = "auto_map.json"
)

// Export is everything the viewer loads, keyed by company.
type Export struct {
	Data        map[string]CompanyData
	Manual      map[string]ManualData
	MatchReview MatchReview
}

// NewExport returns an Export with empty maps stamped with generated.
func NewExport(generated string) *Export {
	return &Export{
		Data:   make(map[string]CompanyData),
		Manual: make(map[string]ManualData),
		MatchReview: MatchReview{
			Generated: generated,
			Companies: make(map[string]CompanyReview),
		},
	}
}

// Write stores the three viewer files in dir and returns their paths.
func (e *Export) Write(dir string, pretty bool) ([]string, error) {
	files := []struct {
		name string
		v    any
	}{
		{DataFile, e.Data},
		{ManualDataFile, e.Manual},
		{MatchReviewFile, e.MatchReview},
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		p := filepath.Join(dir, f.name)
		if err := fileutils.WriteJSONFileAtomic(p, f.v, pretty); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}
