package incident

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// fileRecorder writes gzipped incident documents under a local directory.
type fileRecorder struct {
	dir    string
	logger zerolog.Logger
}

// NewFileRecorder creates a recorder rooted at dir.
func NewFileRecorder(dir string, logger zerolog.Logger) Recorder {
	return &fileRecorder{
		dir:    dir,
		logger: logger.With().Str("component", "incident-file-recorder").Logger(),
	}
}

func (r *fileRecorder) Record(ctx context.Context, inc *Incident) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encode(inc)
	if err != nil {
		return err
	}

	path := filepath.Join(r.dir, filepath.FromSlash(objectName(inc)))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		r.logger.Error().Err(err).Str("file", path).Msg("failed to create incident directory")
		return fmt.Errorf("failed to create incident directory: %w", err)
	}

	// Write to a temp file first so a partial document is never left behind.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		r.logger.Error().Err(err).Str("file", tmp).Msg("failed to write incident file")
		return fmt.Errorf("failed to write incident file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		r.logger.Error().Err(err).Str("file", path).Msg("failed to finalise incident file")
		return fmt.Errorf("failed to finalise incident file %s: %w", path, err)
	}

	r.logger.Info().
		Str("file", path).
		Str("incident_id", inc.ID.String()).
		Str("kind", inc.Kind).
		Msg("incident recorded")

	return nil
}
