package repository_test

import (
	"context"
	"testing"
	"time"

	"finishflow/internal/database"
	"finishflow/internal/model"
	"finishflow/internal/pipeline"
	"finishflow/internal/repository"
	"finishflow/shared/models"

	"github.com/docker/docker/client"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

var _ pipeline.Journal = (*repository.RunJournal)(nil)

const runColumns = `id::text AS id, topic, tone, kind, status, error_kind, error, duration_sec,
	size_bytes, used_fallback, music_used, music_preset, started_at, completed_at`

type RunJournalSuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	pool        *pgxpool.Pool
	journal     *repository.RunJournal
	logger      *zap.Logger
}

func (s *RunJournalSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = zap.NewNop()

	var err error
	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("finishflow_test"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start postgres container")

	dsn, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err)

	s.pool, err = database.Connect(s.ctx, dsn, database.PoolOptions{MaxConns: 4, Retries: 5, RetryDelay: time.Second}, s.logger)
	require.NoError(s.T(), err)
	require.NoError(s.T(), database.ApplyMigrations(s.ctx, s.pool, s.logger))
	// повторное применение ничего не меняет
	require.NoError(s.T(), database.ApplyMigrations(s.ctx, s.pool, s.logger))

	s.journal = repository.NewRunJournal(s.pool, s.logger)
}

func (s *RunJournalSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.pgContainer != nil {
		_ = s.pgContainer.Terminate(s.ctx)
	}
}

func (s *RunJournalSuite) SetupTest() {
	_, err := s.pool.Exec(s.ctx, "TRUNCATE TABLE pipeline_runs")
	require.NoError(s.T(), err)
}

func (s *RunJournalSuite) findRun(id string) (*model.RunRecord, error) {
	var rec model.RunRecord
	err := pgxscan.Get(s.ctx, s.pool, &rec, `SELECT `+runColumns+` FROM pipeline_runs WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *RunJournalSuite) TestRecordAndFind() {
	t := s.T()
	started := time.Now().UTC().Truncate(time.Millisecond)
	rec := model.RunRecord{
		ID:              uuid.NewString(),
		Topic:           "무릎 통증 줄이는 걷기 방법",
		Tone:            string(model.ToneHealth),
		Kind:            string(model.KindDefault),
		Status:          model.RunStatusSuccess,
		DurationSeconds: 10,
		SizeBytes:       183402,
		MusicUsed:       true,
		MusicPreset:     "CALM_LOOP",
		StartedAt:       started,
		CompletedAt:     started.Add(40 * time.Second),
	}
	require.NoError(t, s.journal.Record(s.ctx, rec))

	got, err := s.findRun(rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.Topic, got.Topic)
	require.Equal(t, model.RunStatusSuccess, got.Status)
	require.InDelta(t, 10, got.DurationSeconds, 1e-9)
	require.True(t, got.MusicUsed)
	require.WithinDuration(t, started, got.StartedAt, time.Millisecond)
}

func (s *RunJournalSuite) TestRecordUpserts() {
	t := s.T()
	now := time.Now().UTC()
	rec := model.RunRecord{ID: uuid.NewString(), Topic: "수면", Status: model.RunStatusSuccess, StartedAt: now, CompletedAt: now}
	require.NoError(t, s.journal.Record(s.ctx, rec))

	rec.Status = model.RunStatusFailed
	rec.ErrorKind = models.ErrCodeRender
	rec.Error = "render failed: ffmpeg exited with code 1"
	require.NoError(t, s.journal.Record(s.ctx, rec))

	got, err := s.findRun(rec.ID)
	require.NoError(t, err)
	require.Equal(t, model.RunStatusFailed, got.Status)
	require.Equal(t, models.ErrCodeRender, got.ErrorKind)

	var recent []model.RunRecord
	require.NoError(t, pgxscan.Select(s.ctx, s.pool, &recent, `SELECT `+runColumns+` FROM pipeline_runs`))
	require.Len(t, recent, 1)
}

func (s *RunJournalSuite) TestFindUnknown() {
	_, err := s.findRun(uuid.NewString())
	require.Error(s.T(), err)
	require.True(s.T(), pgxscan.NotFound(err), err)
}

func (s *RunJournalSuite) TestMigrationsRollBackAndReapply() {
	t := s.T()
	m := database.NewMigrator(s.pool, s.logger)

	version, dirty, err := m.Version(s.ctx)
	require.NoError(t, err)
	require.Equal(t, uint(1), version)
	require.False(t, dirty)

	require.NoError(t, m.Down(s.ctx))
	var table *string
	require.NoError(t, s.pool.QueryRow(s.ctx, "SELECT to_regclass('public.pipeline_runs')::text").Scan(&table))
	require.Nil(t, table, "pipeline_runs must be dropped")

	version, _, err = m.Version(s.ctx)
	require.NoError(t, err)
	require.Equal(t, uint(0), version)

	require.NoError(t, database.ApplyMigrations(s.ctx, s.pool, s.logger))
	require.NoError(t, s.pool.QueryRow(s.ctx, "SELECT to_regclass('public.pipeline_runs')::text").Scan(&table))
	require.NotNil(t, table)
}

func TestRunJournalSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	cli, err := client.NewClientWithOpts(client.FromEnv)
	if err != nil {
		t.Skipf("Docker client init error: %v", err)
	}
	if _, err := cli.Ping(context.Background()); err != nil {
		cli.Close()
		t.Skipf("Docker daemon is not accessible: %v", err)
	}
	cli.Close()

	suite.Run(t, new(RunJournalSuite))
}
