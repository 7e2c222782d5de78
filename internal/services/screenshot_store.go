package services

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"bugtracker/internal/config"
	"bugtracker/internal/observability"
	contextutils "bugtracker/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// ScreenshotStore writes report screenshots to a directory as <bug_id>_<name>
type ScreenshotStore struct {
	dir      string
	maxBytes int
	logger   *observability.Logger
}

// NewScreenshotStore creates a store rooted at cfg.ScreenshotDir
func NewScreenshotStore(cfg config.StorageConfig, logger *observability.Logger) *ScreenshotStore {
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &ScreenshotStore{dir: cfg.ScreenshotDir, maxBytes: cfg.MaxScreenshotBytes, logger: logger}
}

// decodeScreenshot accepts raw base64 or a data URL such as "data:image/png;base64,...."
func decodeScreenshot(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if strings.HasPrefix(data, "data:") {
		if i := strings.Index(data, ","); i >= 0 {
			data = data[i+1:]
		}
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(data)
	}
	if err != nil {
		return nil, contextutils.Detailf(contextutils.ErrInvalidFormat, "screenshot is not valid base64")
	}
	return raw, nil
}

// screenshotFileName keeps only the base name so callers cannot escape the directory
func screenshotFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "screenshot.png"
	}
	return name
}

// Save decodes data and writes it. It returns the stored path and the original name.
func (s *ScreenshotStore) Save(ctx context.Context, bugID, name, data string) (path, originalName string, err error) {
	ctx, span := observability.TraceIntegrationFunction(ctx, "save_screenshot",
		observability.AttributeBugID(bugID),
	)
	defer observability.FinishSpan(span, &err)

	raw, err := decodeScreenshot(data)
	if err != nil {
		return "", "", err
	}
	if s.maxBytes > 0 && len(raw) > s.maxBytes {
		return "", "", contextutils.Detailf(contextutils.ErrValidationFailed, "screenshot is %d bytes, limit is %d", len(raw), s.maxBytes)
	}
	span.SetAttributes(attribute.Int("screenshot.bytes", len(raw)))

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", "", contextutils.WrapError(err, "failed to create screenshot directory")
	}

	originalName = screenshotFileName(name)
	path = filepath.Join(s.dir, bugID+"_"+originalName)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", "", contextutils.WrapError(err, "failed to write screenshot")
	}

	s.logger.Info(ctx, "Screenshot saved", map[string]interface{}{"bug_id": bugID, "path": path, "bytes": len(raw)})
	return path, originalName, nil
}

// Remove deletes a stored screenshot; a missing file is not an error
func (s *ScreenshotStore) Remove(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn(ctx, "Failed to remove screenshot", map[string]interface{}{"path": path, "error": err.Error()})
		return contextutils.WrapError(err, "failed to remove screenshot")
	}
	return nil
}
