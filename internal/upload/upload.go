package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	apperrors "storeadmin/internal/errors"
	"storeadmin/internal/storage"
)

// DefaultMaxBytes is the per-file ceiling when none is configured.
const DefaultMaxBytes = 5 << 20

// Acceptor validates uploaded images and writes them to a blob store.
type Acceptor struct {
	store    storage.Store
	maxBytes int64
	logger   *slog.Logger
	now      func() time.Time
}

// NewAcceptor creates an Acceptor. A non-positive maxBytes selects DefaultMaxBytes.
func NewAcceptor(store storage.Store, maxBytes int64, logger *slog.Logger) *Acceptor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Acceptor{
		store:    store,
		maxBytes: maxBytes,
		logger:   logger,
		now:      time.Now,
	}
}

// MaxBytes returns the per-file ceiling.
func (a *Acceptor) MaxBytes() int64 {
	return a.maxBytes
}

// Accept stores an image and returns its relative reference (/uploads/<name>).
// size is the declared length, -1 when unknown; the limit is also enforced while copying.
func (a *Acceptor) Accept(ctx context.Context, r io.Reader, filename, contentType string, size int64) (string, error) {
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return "", fmt.Errorf("%w: got %q", apperrors.ErrUnsupportedMediaType, contentType)
	}
	if size > a.maxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", apperrors.ErrPayloadTooLarge, size, a.maxBytes)
	}

	key := a.generateName(filename, contentType)
	lr := &limitedReader{r: r, remaining: a.maxBytes}
	if err := a.store.Put(ctx, key, lr, contentType); err != nil {
		if lr.exceeded {
			a.Discard(ctx, storage.Ref(key))
			return "", fmt.Errorf("%w: limit %d", apperrors.ErrPayloadTooLarge, a.maxBytes)
		}
		return "", fmt.Errorf("store upload: %w", err)
	}
	return storage.Ref(key), nil
}

// AcceptFile adapts a multipart file part to Accept.
func (a *Acceptor) AcceptFile(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	contentType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return "", fmt.Errorf("%w: got %q", apperrors.ErrUnsupportedMediaType, contentType)
	}
	if fh.Size > a.maxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", apperrors.ErrPayloadTooLarge, fh.Size, a.maxBytes)
	}

	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	return a.Accept(ctx, f, fh.Filename, contentType, fh.Size)
}

// Discard removes a previously accepted blob. Failures are logged, not returned.
func (a *Acceptor) Discard(ctx context.Context, ref string) {
	key, ok := storage.KeyFromRef(ref)
	if !ok {
		return
	}
	if err := a.store.Delete(ctx, key); err != nil {
		a.logger.Warn("discard blob", "key", key, "error", err)
	}
}

// generateName builds product-<unix ms>-<random><ext>.
func (a *Acceptor) generateName(filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if ext == "" || strings.ContainsAny(ext, `/\`) {
		ext = ""
		if mt := mimetype.Lookup(contentType); mt != nil {
			ext = mt.Extension()
		}
	}
	return fmt.Sprintf("product-%d-%d%s", a.now().UnixMilli(), rand.Int64N(1e9), ext)
}

// limitedReader fails once more than remaining bytes are read.
type limitedReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		l.exceeded = true
		return 0, apperrors.ErrPayloadTooLarge
	}
	// Read one byte past the limit to detect overflow.
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		l.exceeded = true
		return 0, apperrors.ErrPayloadTooLarge
	}
	return n, err
}
