package dispatch

import (
	"context"
	"fmt"
	"mime"
	"strings"

	"clipforge/internal/infra"
	"clipforge/internal/storage"
)

// ClipDownloader fetches clip bytes from the provider's hosted URL.
type ClipDownloader interface {
	Download(ctx context.Context, clipURL string) ([]byte, string, error)
}

// StorageMirror copies finished clips into the local file store. Provider
// URLs expire; the mirror is what keeps the asset after that.
type StorageMirror struct {
	Downloader ClipDownloader
	Store      *storage.FileStore
	Logger     infra.Logger
}

func (m *StorageMirror) MirrorClip(ctx context.Context, promptID, clipURL string) (string, int64, error) {
	data, contentType, err := m.Downloader.Download(ctx, clipURL)
	if err != nil {
		return "", 0, fmt.Errorf("mirror: download: %w", err)
	}
	key := fmt.Sprintf("clips/%s/clip%s", promptID, extensionFor(contentType))
	stored, err := m.Store.Write(ctx, key, data)
	if err != nil {
		return "", 0, fmt.Errorf("mirror: store: %w", err)
	}
	m.Logger.Debug().
		Str("prompt_id", promptID).
		Str("storage_key", stored).
		Int("bytes", len(data)).
		Msg("mirror: clip stored")
	return stored, int64(len(data)), nil
}

func extensionFor(contentType string) string {
	contentType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	exts, err := mime.ExtensionsByType(contentType)
	if err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".mp4"
}

var _ Mirror = (*StorageMirror)(nil)
