package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// artifactLayout is the timestamp layout embedded in output file names
const artifactLayout = "20060102_150405"

// OutputArtifact names the file a pipeline writes. It is computed once at
// build time and never changes afterwards.
type OutputArtifact struct {
	Path      string
	CreatedAt time.Time
}

// NewArtifact returns the artifact for a recording started at now:
// <dir>/test_<YYYYMMDD_HHMMSS>.mp4
func NewArtifact(dir string, now time.Time) OutputArtifact {
	return OutputArtifact{
		Path:      filepath.Join(dir, "test_"+now.Format(artifactLayout)+".mp4"),
		CreatedAt: now,
	}
}

// Unique returns a if its path is free, or the first free "<name>_N.mp4"
// sibling. Two recordings started within the same second would otherwise
// overwrite each other.
func (a OutputArtifact) Unique() OutputArtifact {
	if _, err := os.Stat(a.Path); os.IsNotExist(err) {
		return a
	}
	base := strings.TrimSuffix(a.Path, ".mp4")
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d.mp4", base, i)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return OutputArtifact{Path: candidate, CreatedAt: a.CreatedAt}
		}
	}
}
