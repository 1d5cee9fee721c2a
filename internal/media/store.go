// Package media implements the ephemeral artifact store: uploaded
// images and audio clips that live for a fixed TTL and are then gone,
// whether or not the sweeper has physically removed them yet.
package media

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("media: not found")
	ErrExpired     = errors.New("media: expired")
	ErrInvalidType = errors.New("media: invalid type")
	ErrTooLarge    = errors.New("media: too large")
)

var extByMime = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"audio/webm": ".weba",
	"audio/mpeg": ".mp3",
	"audio/ogg":  ".ogg",
	"audio/wav":  ".wav",
}

// Artifact describes one stored media object. Timestamps are unix
// milliseconds to match the wire format.
type Artifact struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Type       string `json:"type"` // "image" or "audio"
	Size       int64  `json:"size"`
	UploadedAt int64  `json:"uploadedAt"`
	ExpiresAt  int64  `json:"expiresAt"`
}

// Store keeps artifacts as files in one directory. The file's mtime is
// the creation time; age is always derived from it, so the read path
// and the sweeper agree on expiry by construction.
type Store struct {
	dir     string
	ttl     time.Duration
	maxSize int64
}

// NewStore creates the directory if needed.
func NewStore(dir string, ttl time.Duration, maxSize int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Store{dir: dir, ttl: ttl, maxSize: maxSize}, nil
}

// Dir returns the backing directory (served statically as /uploads).
func (s *Store) Dir() string { return s.dir }

// TTL returns the shared time-to-live.
func (s *Store) TTL() time.Duration { return s.ttl }

// Save writes a new artifact from r. The mime type must be one of the
// allowed image/audio types and the payload must fit the size cap.
func (s *Store) Save(mime string, r io.Reader) (*Artifact, error) {
	ext, ok := extByMime[mime]
	if !ok {
		return nil, ErrInvalidType
	}

	id := uuid.New().String() + ext
	path := filepath.Join(s.dir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create artifact: %w", err)
	}

	// Read one byte past the cap to detect oversize input.
	n, err := io.Copy(f, io.LimitReader(r, s.maxSize+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write artifact: %w", err)
	}
	if n > s.maxSize {
		os.Remove(path)
		return nil, ErrTooLarge
	}

	now := time.Now()
	return &Artifact{
		ID:         id,
		URL:        "/uploads/" + id,
		Type:       typeOf(mime),
		Size:       n,
		UploadedAt: now.UnixMilli(),
		ExpiresAt:  now.Add(s.ttl).UnixMilli(),
	}, nil
}

// Stat reports on an artifact. An artifact past its TTL is reported
// expired even when the sweeper has not removed the file yet.
func (s *Store) Stat(id string) (*Artifact, error) {
	path, err := s.safePath(id)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	created := info.ModTime()
	if time.Since(created) > s.ttl {
		return nil, ErrExpired
	}

	return &Artifact{
		ID:         id,
		URL:        "/uploads/" + id,
		Type:       typeOfName(id),
		Size:       info.Size(),
		UploadedAt: created.UnixMilli(),
		ExpiresAt:  created.Add(s.ttl).UnixMilli(),
	}, nil
}

// Delete removes the artifact's file. A missing file is not an error:
// physical deletion happens at most once, but callers may race the
// sweeper.
func (s *Store) Delete(id string) error {
	path, err := s.safePath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveExpired deletes every artifact older than the TTL and returns
// how many were removed. Shared by the background sweeper and the admin
// one-shot purge.
func (s *Store) RemoveExpired() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) > s.ttl {
			if err := s.Delete(entry.Name()); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func (s *Store) safePath(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return "", ErrNotFound
	}
	return filepath.Join(s.dir, id), nil
}

func typeOf(mime string) string {
	if strings.HasPrefix(mime, "image/") {
		return "image"
	}
	return "audio"
}

func typeOfName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return "image"
	default:
		return "audio"
	}
}
