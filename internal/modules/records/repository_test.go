package records

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/manchuphon/Alert-Dashboard/internal/database"
	"github.com/manchuphon/Alert-Dashboard/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRecordsDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, database.ApplySchema(db, database.NameRecords))
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRepository_UpsertAndList(t *testing.T) {
	db := setupRecordsDB(t)
	repo := NewRepository(db, zerolog.Nop())
	ctx := context.Background()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	full := domain.ProjectPeriodRecord{
		ProjectID:          "P1",
		ProjectName:        "Tower A",
		CostCode:           domain.CostCode{GCode: "G1", SCode: "S1"},
		Period:             domain.Period{Year: 2024, Month: 2},
		TotalBudget:        1000,
		TotalActual:        400,
		ProgressPercentage: domain.Some(35),
		Certificate:        domain.Some(100),
		ContractValue:      domain.Some(1500),
		Schedule:           &domain.Schedule{Start: start, End: start.AddDate(1, 0, 0)},
	}
	n, err := repo.Upsert(ctx, []domain.ProjectPeriodRecord{
		full,
		rec("P1", "G1", 1, 200),
		rec("P2", "G9", 5, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 1, all[0].Period.Month)
	assert.Equal(t, full, all[1])
	assert.Equal(t, "P2", all[2].ProjectID)

	p1, err := repo.ListByProject(ctx, "P1")
	require.NoError(t, err)
	assert.Len(t, p1, 2)

	none, err := repo.ListByProject(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NotNil(t, none)
}

func TestRepository_UpsertReplacesByKey(t *testing.T) {
	db := setupRecordsDB(t)
	repo := NewRepository(db, zerolog.Nop())
	ctx := context.Background()

	_, err := repo.Upsert(ctx, []domain.ProjectPeriodRecord{rec("P1", "G1", 1, 200)})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, []domain.ProjectPeriodRecord{rec("P1", "G1", 1, 250)})
	require.NoError(t, err)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 250.0, all[0].TotalActual)
}

func TestRepository_ProjectsAndDelete(t *testing.T) {
	db := setupRecordsDB(t)
	repo := NewRepository(db, zerolog.Nop())
	ctx := context.Background()

	named := rec("P1", "G1", 11, 1)
	named.Period.Year = 2023
	named.ProjectName = "Bridge"
	_, err := repo.Upsert(ctx, []domain.ProjectPeriodRecord{named, rec("P1", "G1", 3, 2), rec("P2", "G1", 1, 3)})
	require.NoError(t, err)

	projects, err := repo.Projects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, ProjectInfo{
		ProjectID:   "P1",
		ProjectName: "Bridge",
		Records:     2,
		FirstPeriod: domain.Period{Year: 2023, Month: 11},
		LastPeriod:  domain.Period{Year: 2024, Month: 3},
	}, projects[0])

	removed, err := repo.DeleteProject(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	projects, err = repo.Projects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 1)
}

func TestService_Import(t *testing.T) {
	db := setupRecordsDB(t)
	svc := NewService(NewRepository(db, zerolog.Nop()), domain.ActualsPeriodic, zerolog.Nop())
	ctx := context.Background()

	input := `project_id,g_code,year,month,total_budget,total_actual
P1,G1,2024,1,1000,100
P1,G1,2024,2,1000,150
P1,G1,2024,2,1000,150
,G1,2024,3,1000,10
`
	res, err := svc.Import(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stored)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Skipped)

	recs, err := svc.Project(ctx, "P1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 250.0, recs[1].TotalActual)

	_, err = svc.Import(ctx, strings.NewReader("nope\n"))
	assert.ErrorIs(t, err, ErrInvalidImport)
}

func TestService_ImportPeriodicAcrossUploads(t *testing.T) {
	db := setupRecordsDB(t)
	svc := NewService(NewRepository(db, zerolog.Nop()), domain.ActualsPeriodic, zerolog.Nop())
	ctx := context.Background()

	actuals := func() []float64 {
		recs, err := svc.Project(ctx, "P1")
		require.NoError(t, err)
		var out []float64
		for _, r := range recs {
			if r.CostCode.GCode == "G1" {
				out = append(out, r.TotalActual)
			}
		}
		return out
	}

	uploads := []struct {
		name    string
		input   string
		want    []float64
		rebuilt int
	}{
		{
			name:  "first upload",
			input: "project_id,g_code,year,month,total_budget,total_actual\nP1,G1,2024,1,1000,100\nP1,G1,2024,2,1000,100\nP1,G2,2024,1,500,40\n",
			want:  []float64{100, 200},
		},
		{
			name:    "next month",
			input:   "project_id,g_code,year,month,total_budget,total_actual\nP1,G1,2024,3,1000,100\n",
			want:    []float64{100, 200, 300},
			rebuilt: 2,
		},
		{
			name:    "corrected earlier month",
			input:   "project_id,g_code,year,month,total_budget,total_actual\nP1,G1,2024,2,1000,50\n",
			want:    []float64{100, 150, 250},
			rebuilt: 2,
		},
	}

	for _, u := range uploads {
		res, err := svc.Import(ctx, strings.NewReader(u.input))
		require.NoError(t, err, u.name)
		assert.Equal(t, u.rebuilt, res.Rebuilt, u.name)
		assert.Equal(t, u.want, actuals(), u.name)
	}

	recs, err := svc.Project(ctx, "P1")
	require.NoError(t, err)
	for _, r := range recs {
		if r.CostCode.GCode == "G2" {
			assert.Equal(t, 40.0, r.TotalActual)
		}
	}
}

func TestNewService_DefaultsMode(t *testing.T) {
	svc := NewService(nil, domain.ActualsMode("weekly"), zerolog.Nop())
	assert.Equal(t, domain.ActualsCumulative, svc.Mode())
}
