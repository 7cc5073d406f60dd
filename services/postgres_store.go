package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/flashbots/quantagg/tensor"
)

// PostgresStore implements RoundStore with PostgreSQL persistence.
// Structured values are stored in their JSON wire format.
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// NewPostgresStore connects, applies the schema and returns the store.
func NewPostgresStore(config *PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS aggregation_rounds (
		round BIGINT PRIMARY KEY,
		num_contributors INT NOT NULL,
		result JSONB NOT NULL,
		quantized JSONB NOT NULL,
		distortion DOUBLE PRECISION,
		completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_rounds_completed ON aggregation_rounds(completed_at);
	`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveRound upserts the record for its round.
func (s *PostgresStore) SaveRound(ctx context.Context, rec *RoundRecord) error {
	result, err := tensor.MarshalValue(rec.Result)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	quantized, err := tensor.MarshalValue(rec.Quantized)
	if err != nil {
		return fmt.Errorf("marshaling quantized result: %w", err)
	}

	var distortion sql.NullFloat64
	if rec.Distortion != nil {
		distortion = sql.NullFloat64{Float64: *rec.Distortion, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO aggregation_rounds (round, num_contributors, result, quantized, distortion, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (round) DO UPDATE SET
			num_contributors = EXCLUDED.num_contributors,
			result = EXCLUDED.result,
			quantized = EXCLUDED.quantized,
			distortion = EXCLUDED.distortion,
			completed_at = EXCLUDED.completed_at`,
		rec.Round, rec.NumContributors, result, quantized, distortion, rec.CompletedAt)
	if err != nil {
		return fmt.Errorf("saving round %d: %w", rec.Round, err)
	}
	return nil
}

// GetRound returns the record for a round, or ErrRoundNotFound.
func (s *PostgresStore) GetRound(ctx context.Context, round int) (*RoundRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT round, num_contributors, result, quantized, distortion, completed_at
		FROM aggregation_rounds WHERE round = $1`, round)
	return scanRound(row)
}

// LatestRound returns the most recently completed round's record.
func (s *PostgresStore) LatestRound(ctx context.Context) (*RoundRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT round, num_contributors, result, quantized, distortion, completed_at
		FROM aggregation_rounds ORDER BY round DESC LIMIT 1`)
	return scanRound(row)
}

func scanRound(row *sql.Row) (*RoundRecord, error) {
	var (
		rec        RoundRecord
		result     []byte
		quantized  []byte
		distortion sql.NullFloat64
	)
	err := row.Scan(&rec.Round, &rec.NumContributors, &result, &quantized, &distortion, &rec.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning round: %w", err)
	}

	if rec.Result, err = tensor.UnmarshalValue(result); err != nil {
		return nil, fmt.Errorf("unmarshaling result: %w", err)
	}
	if rec.Quantized, err = tensor.UnmarshalValue(quantized); err != nil {
		return nil, fmt.Errorf("unmarshaling quantized result: %w", err)
	}
	if distortion.Valid {
		rec.Distortion = &distortion.Float64
	}
	return &rec, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
