package records

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/manchuphon/Alert-Dashboard/internal/domain"
	"github.com/rs/zerolog"
)

// ErrInvalidImport is returned when an import document cannot be parsed
var ErrInvalidImport = errors.New("invalid import")

// ImportResult reports the outcome of one CSV import
type ImportResult struct {
	ParseResult
	Replaced int `json:"replaced"`
	Stored   int `json:"stored"`
	// Rebuilt counts previously stored periods whose cumulative actual was recomputed
	Rebuilt int `json:"rebuilt,omitempty"`
}

// Service ingests CSV exports into the records repository
type Service struct {
	repo *Repository
	mode domain.ActualsMode
	log  zerolog.Logger
}

// NewService creates a records service. Actuals are normalized to cumulative
// cost to date according to mode before they are stored.
func NewService(repo *Repository, mode domain.ActualsMode, log zerolog.Logger) *Service {
	if !mode.IsValid() {
		mode = domain.ActualsCumulative
	}
	return &Service{
		repo: repo,
		mode: mode,
		log:  log.With().Str("service", "records").Logger(),
	}
}

// Mode returns the actuals mode applied on import
func (s *Service) Mode() domain.ActualsMode {
	return s.mode
}

// Load parses and normalizes a CSV document without storing it
func Load(r io.Reader, mode domain.ActualsMode) (ImportResult, error) {
	result, err := parse(r)
	if err != nil {
		return ImportResult{}, err
	}
	result.Records = ToCumulative(result.Records, mode)
	return result, nil
}

func parse(r io.Reader) (ImportResult, error) {
	parsed, err := ParseCSV(r)
	if err != nil {
		return ImportResult{}, err
	}
	recs, replaced := Dedupe(parsed.Records)
	parsed.Records = recs
	return ImportResult{ParseResult: parsed, Replaced: replaced}, nil
}

// Import parses a CSV document and stores its records.
// In periodic mode every cost line touched by the document is rebuilt from the
// stored periods merged with the imported ones, so cost to date keeps accumulating
// across uploads.
func (s *Service) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	result, err := parse(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}

	for _, e := range result.Errors {
		s.log.Warn().Int("line", e.Line).Str("error", e.Err).Msg("Skipped malformed CSV row")
	}

	imported := len(result.Records)
	toStore := result.Records
	if s.mode == domain.ActualsPeriodic {
		merged, stored, err := s.mergeStoredLines(ctx, result.Records)
		if err != nil {
			return ImportResult{}, err
		}
		toStore = ToCumulative(merged, domain.ActualsPeriodic)
		result.Rebuilt = stored
		result.Records = importedOnly(toStore, result.Records)
	}

	if _, err := s.repo.Upsert(ctx, toStore); err != nil {
		return ImportResult{}, fmt.Errorf("failed to store import: %w", err)
	}
	result.Stored = imported

	s.log.Info().
		Int("rows", result.Rows).
		Int("stored", result.Stored).
		Int("skipped", result.Skipped).
		Int("duplicates", result.Duplicates).
		Int("replaced", result.Replaced).
		Int("rebuilt", result.Rebuilt).
		Str("actuals_mode", string(s.mode)).
		Msg("Imported records")

	return result, nil
}

// mergeStoredLines returns the periodic records of every cost line in recs, with
// stored periods recovered from their cumulative actuals. Imported periods replace
// stored ones. The second value counts stored periods that were not replaced.
func (s *Service) mergeStoredLines(ctx context.Context, recs []domain.ProjectPeriodRecord) ([]domain.ProjectPeriodRecord, int, error) {
	lines := make(map[lineKey]bool)
	var projects []string
	seen := make(map[string]bool)
	for _, r := range recs {
		lines[lineKey{r.ProjectID, r.CostCode}] = true
		if !seen[r.ProjectID] {
			seen[r.ProjectID] = true
			projects = append(projects, r.ProjectID)
		}
	}

	imported := make(map[domain.Key]bool, len(recs))
	for _, r := range recs {
		imported[r.Key()] = true
	}

	var merged []domain.ProjectPeriodRecord
	kept := 0
	for _, projectID := range projects {
		stored, err := s.repo.ListByProject(ctx, projectID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to load stored records of %s: %w", projectID, err)
		}
		var touched []domain.ProjectPeriodRecord
		for _, r := range stored {
			if lines[lineKey{r.ProjectID, r.CostCode}] {
				touched = append(touched, r)
			}
		}
		for _, r := range ToPeriodic(touched) {
			if imported[r.Key()] {
				continue
			}
			merged = append(merged, r)
			kept++
		}
	}
	return append(merged, recs...), kept, nil
}

func importedOnly(all, imported []domain.ProjectPeriodRecord) []domain.ProjectPeriodRecord {
	keys := make(map[domain.Key]bool, len(imported))
	for _, r := range imported {
		keys[r.Key()] = true
	}
	out := make([]domain.ProjectPeriodRecord, 0, len(imported))
	for _, r := range all {
		if keys[r.Key()] {
			out = append(out, r)
		}
	}
	return out
}

// All returns every stored record
func (s *Service) All(ctx context.Context) ([]domain.ProjectPeriodRecord, error) {
	return s.repo.List(ctx)
}

// Project returns the stored records of one project
func (s *Service) Project(ctx context.Context, projectID string) ([]domain.ProjectPeriodRecord, error) {
	return s.repo.ListByProject(ctx, projectID)
}

// Projects lists stored projects
func (s *Service) Projects(ctx context.Context) ([]ProjectInfo, error) {
	return s.repo.Projects(ctx)
}

// DeleteProject removes a project's records
func (s *Service) DeleteProject(ctx context.Context, projectID string) (int64, error) {
	return s.repo.DeleteProject(ctx, projectID)
}
