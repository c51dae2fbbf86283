package service

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/sakif/intelligence-platform/internal/apperror"
	"github.com/sakif/intelligence-platform/internal/model"
	"github.com/sakif/intelligence-platform/internal/repository"
)

// DefaultDelimiter separates fields in legacy credential files and bulk
// tabular files unless configured otherwise.
const DefaultDelimiter = ','

// maxLineBytes bounds a single legacy credential line.
const maxLineBytes = 1 << 20

// utf8BOM is stripped from the first header cell; spreadsheet exports often
// start with one.
const utf8BOM = "\ufeff"

// MigrationService ingests flat files into the store: legacy credential
// lists into users, and header-described tabular files into any table.
type MigrationService struct {
	repo      repository.IngestRepository
	delimiter rune
	logger    *slog.Logger
}

func NewMigrationService(repo repository.IngestRepository, delimiter rune, logger *slog.Logger) *MigrationService {
	if delimiter == 0 {
		delimiter = DefaultDelimiter
	}
	return &MigrationService{
		repo:      repo,
		delimiter: delimiter,
		logger:    logger,
	}
}

// MigrateLegacyCredentials upserts every well-formed line of the file at
// path into users and reports how many users were actually added.
//
// FILE FORMAT:
//
//	username<delim>password_hash[<delim>anything else...]
//
// Lines with fewer than two fields, or with an empty username or hash, are
// skipped and counted in LoadResult.Skipped; they never fail the batch.
// Blank lines are ignored. Hashes are stored exactly as they appear; nothing
// is re-hashed.
//
// A missing file is not an error: the result has Missing set and Rows 0.
// Re-running against an unchanged file adds nothing.
func (s *MigrationService) MigrateLegacyCredentials(ctx context.Context, path string) (model.LoadResult, error) {
	result := model.LoadResult{Source: path, Table: "users"}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("legacy credentials file not found", slog.String("path", path))
			result.Missing = true
			return result, nil
		}
		return result, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	creds, skipped, err := s.parseLegacy(path, f)
	if err != nil {
		return result, err
	}
	result.Skipped = skipped

	n, err := s.repo.UpsertLegacyUsers(ctx, path, creds, skipped)
	if err != nil {
		s.logger.Error("legacy credential migration failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return result, err
	}
	result.Rows = n

	s.logger.Info("legacy credentials migrated",
		slog.String("path", path),
		slog.Int("migrated", n),
		slog.Int("already_present", len(creds)-n),
		slog.Int("skipped", skipped),
	)
	return result, nil
}

func (s *MigrationService) parseLegacy(path string, r io.Reader) ([]model.LegacyCredential, int, error) {
	var (
		creds   []model.LegacyCredential
		skipped int
		lineNo  int
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if lineNo == 1 {
			line = strings.TrimPrefix(line, utf8BOM)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		parts := strings.Split(line, string(s.delimiter))
		if len(parts) < 2 {
			skipped++
			s.logger.Warn("skipping malformed credential line",
				slog.String("path", path),
				slog.Int("line", lineNo),
				slog.String("reason", "fewer than two fields"),
			)
			continue
		}

		username := strings.TrimSpace(parts[0])
		hash := strings.TrimSpace(parts[1])
		if username == "" || hash == "" {
			skipped++
			s.logger.Warn("skipping malformed credential line",
				slog.String("path", path),
				slog.Int("line", lineNo),
				slog.String("reason", "empty username or hash"),
			)
			continue
		}

		creds = append(creds, model.LegacyCredential{
			Username:     username,
			PasswordHash: hash,
			Line:         lineNo,
		})
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, 0, apperror.MalformedRecord(path, lineNo+1, "line too long")
		}
		return nil, 0, fmt.Errorf("reading %s: %w", path, err)
	}
	return creds, skipped, nil
}

// BulkLoad appends every data row of the tabular file at path to table.
//
// The first record is the header; its names must be columns of table. Each
// cell is converted to its column's type and an empty cell is stored as NULL.
// Unlike the legacy credential path nothing is skipped: one bad row (unknown
// column, wrong field count, type mismatch, constraint failure) aborts the
// whole file with apperror.ErrMalformedRecord and no row is kept.
//
// A missing file is not an error: the result has Missing set and Rows 0.
// Loading the same file twice appends its rows twice.
func (s *MigrationService) BulkLoad(ctx context.Context, path, table string) (model.LoadResult, error) {
	table = strings.TrimSpace(table)
	result := model.LoadResult{Source: path, Table: table}
	if table == "" {
		return result, apperror.ValidationFailed("table", "table name is required")
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("bulk file not found",
				slog.String("path", path),
				slog.String("table", table),
			)
			result.Missing = true
			return result, nil
		}
		return result, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	batch, err := s.readTabular(path, table, f)
	if err != nil {
		s.logger.Error("bulk load rejected",
			slog.String("path", path),
			slog.String("table", table),
			slog.String("error", err.Error()),
		)
		return result, err
	}

	n, err := s.repo.AppendRows(ctx, batch)
	if err != nil {
		s.logger.Error("bulk load failed",
			slog.String("path", path),
			slog.String("table", table),
			slog.String("error", err.Error()),
		)
		return result, err
	}
	result.Rows = n

	s.logger.Info("bulk file loaded",
		slog.String("path", path),
		slog.String("table", table),
		slog.Int("rows", n),
	)
	return result, nil
}

func (s *MigrationService) readTabular(path, table string, r io.Reader) (model.TabularBatch, error) {
	batch := model.TabularBatch{Source: path, Table: table}

	cr := csv.NewReader(bufio.NewReader(r))
	cr.Comma = s.delimiter
	// Field counts are checked per row by the repository so the error can
	// name the offending line.
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return batch, apperror.MalformedRecord(path, 1, "file has no header row")
		}
		return batch, csvError(path, err)
	}
	header[0] = strings.TrimPrefix(header[0], utf8BOM)
	batch.Header = header

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return batch, csvError(path, err)
		}
		line, _ := cr.FieldPos(0)
		batch.Rows = append(batch.Rows, rec)
		batch.Lines = append(batch.Lines, line)
	}
	return batch, nil
}

// csvError turns a parse failure into a MalformedRecord at the failing line.
func csvError(path string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return apperror.MalformedRecord(path, pe.Line, pe.Err.Error())
	}
	return fmt.Errorf("reading %s: %w", path, err)
}

// ListRuns returns the ingestion ledger, newest first.
func (s *MigrationService) ListRuns(ctx context.Context) ([]model.IngestRun, error) {
	runs, err := s.repo.ListIngestRuns(ctx)
	if err != nil {
		s.logger.Error("failed to list ingest runs", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing ingest runs: %w", err)
	}
	return runs, nil
}
