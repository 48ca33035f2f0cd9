package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/soaringjerry/maat/internal/logging"
	"github.com/soaringjerry/maat/internal/metrics"
	"github.com/soaringjerry/maat/internal/models"
)

// BundleName is the archive written next to the per-participant files.
const BundleName = "all_responses.zip"

type ExportStore interface {
	GetParticipant(ctx context.Context, id int64) (*models.Participant, error)
	ListResultRowsByParticipant(ctx context.Context, participantID int64) ([]models.ResultRow, error)
	ListResultRows(ctx context.Context) ([]models.ResultRow, error)
	UpsertExportFile(ctx context.Context, f *models.ExportFile) error
	ListExportFiles(ctx context.Context) ([]*models.ExportFile, error)
	DeleteExportFile(ctx context.Context, filename string) error
}

type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

// ExportService writes results files into a directory and keeps the manifest
// of what it wrote. Bundles only ever contain manifest files.
type ExportService struct {
	store   ExportStore
	dir     string
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu sync.Mutex
}

func NewExportService(store ExportStore, dir string) *ExportService {
	return &ExportService{
		store:  store,
		dir:    dir,
		logger: logging.NewNop(),
		now:    time.Now,
	}
}

func (s *ExportService) WithLogger(logger *slog.Logger) *ExportService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *ExportService) WithMetrics(m *metrics.Metrics) *ExportService {
	s.metrics = m
	return s
}

// Dir is the results directory.
func (s *ExportService) Dir() string { return s.dir }

// ExportParticipantCSV writes every response of the participant to a new
// timestamped file and records it in the manifest.
func (s *ExportService) ExportParticipantCSV(ctx context.Context, participantID int64, runID string) (*ExportResult, error) {
	p, err := s.store.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, NewNotFoundError("participant not found")
	}
	rows, err := s.store.ListResultRowsByParticipant(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	data, err := ExportResultsCSV(rows)
	if err != nil {
		return nil, err
	}

	now := s.now()
	name := ResultsFilename(p.SubjectID, now)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	if err := writeFileAtomic(s.dir, name, data); err != nil {
		return nil, fmt.Errorf("write %s: %w", name, err)
	}

	entry := &models.ExportFile{
		Filename:      name,
		ParticipantID: sql.NullInt64{Int64: p.ID, Valid: true},
		Rows:          len(rows),
		CreatedAt:     now.UTC(),
	}
	if runID != "" {
		entry.RunID = sql.NullString{String: runID, Valid: true}
	}
	if err := s.store.UpsertExportFile(ctx, entry); err != nil {
		return nil, fmt.Errorf("record export file: %w", err)
	}
	s.metrics.Exported("csv")
	s.logger.Info("participant results exported", "file", name, "rows", len(rows))
	return &ExportResult{Filename: name, ContentType: "text/csv; charset=utf-8", Data: data, Rows: len(rows)}, nil
}

// ExportAllZip bundles the manifest files into BundleName, replacing any
// previous bundle, and returns the archive. Manifest entries whose file no
// longer exists are dropped from the manifest.
func (s *ExportService) ExportAllZip(ctx context.Context) (*ExportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.store.ListExportFiles(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]ZipEntry, 0, len(files))
	for _, f := range files {
		name := f.Filename
		if name != filepath.Base(name) || name == BundleName {
			s.logger.Warn("skipping unsafe manifest entry", "file", name)
			continue
		}
		path := filepath.Join(s.dir, name)
		entries = append(entries, ZipEntry{
			Name: name,
			Open: func() (io.ReadCloser, error) { return os.Open(path) },
		})
	}

	var missing []string
	buf := &bytes.Buffer{}
	n, err := WriteZip(buf, entries, func(name string, err error) {
		s.logger.Warn("manifest file missing from results dir", "file", name, "err", err)
		if errors.Is(err, fs.ErrNotExist) {
			missing = append(missing, name)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", BundleName, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	if err := writeFileAtomic(s.dir, BundleName, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("write %s: %w", BundleName, err)
	}
	for _, name := range missing {
		if err := s.store.DeleteExportFile(ctx, name); err != nil {
			return nil, fmt.Errorf("prune manifest entry %s: %w", name, err)
		}
	}
	s.metrics.Exported("zip")
	s.logger.Info("results bundle written", "files", n, "pruned", len(missing))
	return &ExportResult{Filename: BundleName, ContentType: "application/zip", Data: buf.Bytes(), Rows: n}, nil
}

// ExportWorkbook renders every response into an xlsx workbook. Nothing is
// written to the results directory.
func (s *ExportService) ExportWorkbook(ctx context.Context) (*ExportResult, error) {
	rows, err := s.store.ListResultRows(ctx)
	if err != nil {
		return nil, err
	}
	data, err := ExportResultsWorkbook(rows)
	if err != nil {
		return nil, fmt.Errorf("build workbook: %w", err)
	}
	s.metrics.Exported("xlsx")
	return &ExportResult{
		Filename:    "all_responses.xlsx",
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        data,
		Rows:        len(rows),
	}, nil
}
