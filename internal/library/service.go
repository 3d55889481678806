// Package library owns the on-disk layout: the quarantine root where fresh
// downloads land, and the movie and show roots where clean payloads are
// filed. All paths handed to other components come from here.
package library

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/catalog"
)

// mediaExtensions is the allow-list applied before scanning: video
// containers plus subtitle formats. Everything else in a payload (samples,
// NFOs, executables) is deleted so it cannot influence the verdict.
var mediaExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".m4v": true, ".mov": true,
	".wmv": true, ".ts": true, ".webm": true, ".mpg": true, ".mpeg": true,
	".flv": true,
	".srt": true, ".sub": true, ".idx": true, ".ass": true, ".ssa": true,
	".vtt": true, ".smi": true,
}

type Service struct {
	quarantineRoot string
	movieRoot      string
	showRoot       string
	logger         zerolog.Logger
}

func NewService(quarantineRoot, movieRoot, showRoot string, logger zerolog.Logger) *Service {
	return &Service{
		quarantineRoot: quarantineRoot,
		movieRoot:      movieRoot,
		showRoot:       showRoot,
		logger:         logger.With().Str("component", "library").Logger(),
	}
}

// QuarantinePath returns where a freshly downloaded payload lives.
func (s *Service) QuarantinePath(name string) string {
	return filepath.Join(s.quarantineRoot, name)
}

// LibraryDestination returns the final path for a clean payload, under the
// movie or show root according to kind.
func (s *Service) LibraryDestination(kind catalog.MediaKind, name string) string {
	if kind == catalog.KindShow {
		return filepath.Join(s.showRoot, name)
	}
	return filepath.Join(s.movieRoot, name)
}

// StripNonMedia walks the tree under path and deletes every regular file
// whose extension is not on the media allow-list. Returns how many files
// were removed. A single non-media file as path itself is also removed.
func (s *Service) StripNonMedia(path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}

	if !info.IsDir() {
		if isMediaFile(path) {
			return 0, nil
		}
		if err := os.Remove(path); err != nil {
			return 0, err
		}
		return 1, nil
	}

	removed := 0
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || isMediaFile(p) {
			return nil
		}
		if err := os.Remove(p); err != nil {
			return err
		}
		s.logger.Debug().Str("file", p).Msg("stripped non-media file")
		removed++
		return nil
	})
	if err != nil {
		return removed, err
	}
	return removed, nil
}

func isMediaFile(path string) bool {
	return mediaExtensions[strings.ToLower(filepath.Ext(path))]
}

// Move relocates a file or directory, creating the destination's parent.
// A plain rename is attempted first; when src and dst sit on different
// filesystems the move degrades to copy-then-delete.
func (s *Service) Move(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination parent: %w", err)
	}

	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	if err := copyTree(src, dst); err != nil {
		// leave dst partial for inspection, src stays authoritative
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	if err := os.RemoveAll(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}

	s.logger.Debug().Str("src", src).Str("dst", dst).Msg("cross-device move completed")
	return nil
}

func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return copyFile(src, dst, info.Mode())
	}

	return filepath.WalkDir(src, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(p, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Delete removes a file or a directory tree.
func (s *Service) Delete(path string) error {
	return os.RemoveAll(path)
}

// Exists reports whether path exists at all.
func (s *Service) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDirectory reports whether path exists and is a directory.
func (s *Service) IsDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsFile reports whether path exists and is a regular file.
func (s *Service) IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
