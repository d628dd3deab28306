// Package storage keeps uploaded files on local disk under content-addressed
// names and hands back public URLs.
package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aq2208/stitch-order-api/internal/usecase"
	"github.com/zeebo/blake3"
)

var ErrBadKey = errors.New("invalid storage key")

// LocalStore writes to Dir and resolves URLs under BaseURL. Identical bytes
// under the same key land on the same file, so re-uploads are free.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Put(ctx context.Context, key string, f usecase.Upload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(f.Data)
	name := hex.EncodeToString(sum[:16]) + extension(f)
	rel := path.Join(clean, name)

	full := filepath.Join(s.dir, filepath.FromSlash(rel))
	if _, err := os.Stat(full); err == nil {
		return s.baseURL + "/" + rel, nil
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(f.Data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return s.baseURL + "/" + rel, nil
}

func cleanKey(key string) (string, error) {
	key = strings.Trim(key, "/")
	if key == "" {
		return "", ErrBadKey
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." || strings.ContainsAny(seg, `\:`) {
			return "", fmt.Errorf("%w: %q", ErrBadKey, key)
		}
	}
	return key, nil
}

func extension(f usecase.Upload) string {
	if ext := path.Ext(f.Filename); ext != "" {
		return strings.ToLower(ext)
	}
	if f.ContentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(f.ContentType)
	if err != nil {
		return ""
	}
	switch mt {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	}
	if exts, _ := mime.ExtensionsByType(mt); len(exts) > 0 {
		return exts[0]
	}
	return ""
}

var _ usecase.FileStorage = (*LocalStore)(nil)
