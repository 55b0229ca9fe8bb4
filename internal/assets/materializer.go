// Package assets copies bundled, read-only assets into the writable install
// directory so the client can open them by path.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jeanhaley32/ouinet-shell/internal/constants"
	"github.com/jeanhaley32/ouinet-shell/internal/fsutil"
	"github.com/jeanhaley32/ouinet-shell/internal/logfields"
	"github.com/jeanhaley32/ouinet-shell/internal/metrics"
)

// ErrAssetMissing is returned when the bundle has no asset with the
// requested name.
var ErrAssetMissing = fmt.Errorf("bundled asset missing: %w", fs.ErrNotExist)

// Materializer copies assets out of a bundle.
type Materializer struct {
	bundle   fs.FS
	logger   *slog.Logger
	recorder metrics.Recorder
}

// NewMaterializer creates a Materializer reading from bundle.
func NewMaterializer(bundle fs.FS, logger *slog.Logger, recorder metrics.Recorder) *Materializer {
	return &Materializer{
		bundle:   bundle,
		logger:   logfields.Or(logger),
		recorder: metrics.Or(recorder),
	}
}

// CopyAsset writes the bundled asset name to dest, creating parent
// directories. Executables get mode 0755, other assets 0644. The file is
// replaced atomically, so calling CopyAsset again over an existing copy
// leaves a byte-identical file and readers never observe a partial write.
func (m *Materializer) CopyAsset(name, dest string, executable bool) error {
	err := m.copyAsset(name, dest, executable)
	m.recorder.IncAssetMaterialized(name, err == nil)
	if err != nil {
		m.logger.Warn("Failed to materialize asset",
			logfields.Asset(name), logfields.Path(dest), logfields.Error(err))
		return err
	}
	m.logger.Debug("Materialized asset", logfields.Asset(name), logfields.Path(dest))
	return nil
}

func (m *Materializer) copyAsset(name, dest string, executable bool) error {
	if m.bundle == nil {
		return fmt.Errorf("%w: %s (no bundle)", ErrAssetMissing, name)
	}

	data, err := fs.ReadFile(m.bundle, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrAssetMissing, name)
		}
		return fmt.Errorf("failed to read asset %s: %w", name, err)
	}

	perm := constants.PublicFilePermissions
	if executable {
		perm = constants.ExecutablePermissions
	}
	if err := fsutil.WriteFileAtomic(dest, data, perm); err != nil {
		return fmt.Errorf("failed to write asset %s: %w", name, err)
	}
	return nil
}
