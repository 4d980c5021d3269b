// Package artifacts snapshots repository indexes into immutable
// per-commit archives.
//
// An artifact is a tar.gz of the whole index directory, written after a
// sync completes. Artifacts are never modified once written; pruning
// only deletes whole files.
package artifacts

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var artifactTracer = otel.Tracer("github.com/fyrsmithlabs/indexd/internal/artifacts")

const (
	artifactsDirName = "artifacts"
	artifactExt      = ".tar.gz"
	commitNameLen    = 12
)

// Artifact describes one stored snapshot.
type Artifact struct {
	Commit    string    `json:"commit"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
	SizeMB    float64   `json:"size_mb"`
}

// Manager stores and prunes commit artifacts under basePath/artifacts.
type Manager struct {
	baseDir string
	logger  *zap.Logger
}

// NewManager creates an artifact manager rooted at basePath.
func NewManager(basePath string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		baseDir: filepath.Join(basePath, artifactsDirName),
		logger:  logger,
	}
}

func (m *Manager) repoDir(repoID string) string {
	return filepath.Join(m.baseDir, repoID)
}

func artifactName(repoID, commit string) string {
	short := commit
	if len(short) > commitNameLen {
		short = short[:commitNameLen]
	}
	return fmt.Sprintf("%s_%s%s", repoID, short, artifactExt)
}

// Create archives the index directory for the given commit and returns
// the artifact path. A missing or empty index yields no artifact and no
// error. An artifact that already exists for the commit is kept as is;
// snapshots are immutable.
func (m *Manager) Create(ctx context.Context, repoID, indexPath, commit string) (string, error) {
	_, span := artifactTracer.Start(ctx, "artifacts.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("repository_id", repoID),
		attribute.String("commit", commit),
	)

	if commit == "" {
		return "", fmt.Errorf("commit is required")
	}

	entries, err := os.ReadDir(indexPath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading index dir: %w", err)
	}
	if len(entries) == 0 {
		return "", nil
	}

	dir := m.repoDir(repoID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating artifact dir: %w", err)
	}

	target := filepath.Join(dir, artifactName(repoID, commit))
	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	// Write to a temp file first so a crash never leaves a truncated
	// archive behind under the final name.
	tmp := target + ".tmp"
	if err := writeArchive(tmp, indexPath); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("publishing artifact: %w", err)
	}

	m.logger.Info("artifact created",
		zap.String("repository_id", repoID),
		zap.String("commit", commit),
		zap.String("path", target),
	)
	return target, nil
}

func writeArchive(dest, indexPath string) error {
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	err = filepath.Walk(indexPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(indexPath, path)
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(tw, src)
		src.Close()
		return err
	})
	if err != nil {
		tw.Close()
		gz.Close()
		return fmt.Errorf("archiving %s: %w", indexPath, err)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalizing tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("finalizing gzip: %w", err)
	}
	return f.Sync()
}

// List returns the repository's artifacts, newest first.
func (m *Manager) List(ctx context.Context, repoID string) ([]Artifact, error) {
	_, span := artifactTracer.Start(ctx, "artifacts.List")
	defer span.End()
	span.SetAttributes(attribute.String("repository_id", repoID))

	entries, err := os.ReadDir(m.repoDir(repoID))
	if os.IsNotExist(err) {
		return []Artifact{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading artifact dir: %w", err)
	}

	artifacts := make([]Artifact, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, artifactExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, Artifact{
			Commit:    commitFromName(repoID, name),
			Filename:  name,
			CreatedAt: info.ModTime().UTC(),
			SizeMB:    float64(info.Size()) / (1024 * 1024),
		})
	}

	sort.Slice(artifacts, func(i, j int) bool {
		if !artifacts[i].CreatedAt.Equal(artifacts[j].CreatedAt) {
			return artifacts[i].CreatedAt.After(artifacts[j].CreatedAt)
		}
		return artifacts[i].Filename > artifacts[j].Filename
	})
	return artifacts, nil
}

func commitFromName(repoID, filename string) string {
	trimmed := strings.TrimSuffix(filename, artifactExt)
	trimmed = strings.TrimPrefix(trimmed, repoID+"_")
	return trimmed
}

// Cleanup deletes all but the newest keepLast artifacts and returns how
// many were removed. A keepLast of zero removes every artifact.
func (m *Manager) Cleanup(ctx context.Context, repoID string, keepLast int) (int, error) {
	_, span := artifactTracer.Start(ctx, "artifacts.Cleanup")
	defer span.End()
	span.SetAttributes(
		attribute.String("repository_id", repoID),
		attribute.Int("keep_last", keepLast),
	)

	if keepLast < 0 {
		return 0, fmt.Errorf("keep_last cannot be negative")
	}

	artifacts, err := m.List(ctx, repoID)
	if err != nil {
		return 0, err
	}
	if len(artifacts) <= keepLast {
		return 0, nil
	}

	removed := 0
	for _, a := range artifacts[keepLast:] {
		if err := os.Remove(filepath.Join(m.repoDir(repoID), a.Filename)); err != nil {
			return removed, fmt.Errorf("removing artifact %s: %w", a.Filename, err)
		}
		removed++
	}
	if removed > 0 {
		m.logger.Info("artifacts pruned",
			zap.String("repository_id", repoID),
			zap.Int("removed", removed),
			zap.Int("kept", keepLast),
		)
	}
	return removed, nil
}
