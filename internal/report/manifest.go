package report

import (
	"time"

	"github.com/google/uuid"
)

// Manifest describes one run and every artifact it produced.
type Manifest struct {
	RunID             string          `json:"run_id"`
	GeneratedAt       time.Time       `json:"generated_at"`
	ConfigFingerprint string          `json:"config_fingerprint"`
	Series            []string        `json:"series"`
	Records           int             `json:"records"`
	Artifacts         []ArtifactEntry `json:"artifacts"`
}

// ArtifactEntry records the path, content checksum, and size of one
// written file. Paths are relative to the output directory.
type ArtifactEntry struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Bytes  int64  `json:"bytes"`
}

// NewManifest starts a manifest for a fresh run.
func NewManifest(configFingerprint string) *Manifest {
	return &Manifest{
		RunID:             uuid.New().String(),
		GeneratedAt:       time.Now().UTC(),
		ConfigFingerprint: configFingerprint,
	}
}
