package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/truthsnap/forensics-engine/pkg/models"
)

// schemaSQL is compiled into the binary at build time.
// This ensures schema init works inside the Docker runtime image which
// does not copy internal/db/schema.sql into the final stage.
//
//go:embed schema.sql
var schemaSQL string

type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	log.Println("[DB] Successfully connected to PostgreSQL for Forensics Engine")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema executes the embedded schema.sql DDL statements.
func (s *PostgresStore) InitSchema() error {
	_, err := s.pool.Exec(context.Background(), schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}

	log.Println("[DB] Forensics schema initialized")
	return nil
}

// GetPool exposes the connection pool for other subsystems.
func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}

// SaveVerifyResult persists one completed analysis: the verdict row
// plus any metadata red flags. Re-uploads of the same image replace
// the previous verdict.
func (s *PostgresStore) SaveVerifyResult(ctx context.Context, imageHash string, mode models.Mode, result *models.VerifyResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding result: %v", err)
	}

	fraudScore := 0
	riskLevel := models.RiskMinimal
	var redFlags []models.RedFlag
	if result.MetadataValidation != nil {
		fraudScore = result.MetadataValidation.FraudScore
		riskLevel = result.MetadataValidation.RiskLevel
		redFlags = result.MetadataValidation.RedFlags
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	insertAnalysisSQL := `
		INSERT INTO image_analyses
			(request_id, image_hash, verdict, confidence, reason, mode,
			 fraud_score, risk_level, watermark_detected, processing_ms, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (image_hash) DO UPDATE SET
			request_id = EXCLUDED.request_id,
			verdict = EXCLUDED.verdict,
			confidence = EXCLUDED.confidence,
			reason = EXCLUDED.reason,
			mode = EXCLUDED.mode,
			fraud_score = EXCLUDED.fraud_score,
			risk_level = EXCLUDED.risk_level,
			watermark_detected = EXCLUDED.watermark_detected,
			processing_ms = EXCLUDED.processing_ms,
			result = EXCLUDED.result,
			analyzed_at = NOW()
		RETURNING id;
	`
	var analysisID int64
	err = tx.QueryRow(ctx, insertAnalysisSQL,
		result.RequestID,
		imageHash,
		result.Verdict,
		result.Confidence,
		result.Reason,
		string(mode),
		fraudScore,
		riskLevel,
		result.WatermarkDetected,
		result.ProcessingTimeMS,
		payload,
	).Scan(&analysisID)
	if err != nil {
		return fmt.Errorf("failed to insert image_analyses: %v", err)
	}

	// Replace the flag set on re-analysis.
	if _, err := tx.Exec(ctx, `DELETE FROM analysis_red_flags WHERE analysis_id = $1`, analysisID); err != nil {
		return fmt.Errorf("failed to clear red flags: %v", err)
	}
	if len(redFlags) > 0 {
		insertFlagSQL := `
			INSERT INTO analysis_red_flags
				(analysis_id, severity, reason, score, trust_level, requires_visual_proof)
			VALUES ($1, $2, $3, $4, $5, $6);
		`
		for _, flag := range redFlags {
			_, err = tx.Exec(ctx, insertFlagSQL,
				analysisID,
				flag.Severity,
				flag.Reason,
				flag.Score,
				flag.TrustLevel,
				flag.RequiresVisualProof,
			)
			if err != nil {
				return fmt.Errorf("failed to insert red flag: %v", err)
			}
		}
	}

	return tx.Commit(ctx)
}

// AnalysisRecord is one row of the recent-analyses listing.
type AnalysisRecord struct {
	RequestID         string    `json:"requestId"`
	ImageHash         string    `json:"imageHash"`
	Verdict           string    `json:"verdict"`
	Confidence        float64   `json:"confidence"`
	Reason            string    `json:"reason"`
	Mode              string    `json:"mode"`
	FraudScore        int       `json:"fraudScore"`
	RiskLevel         string    `json:"riskLevel"`
	WatermarkDetected bool      `json:"watermarkDetected"`
	ProcessingMS      int64     `json:"processingMs"`
	AnalyzedAt        time.Time `json:"analyzedAt"`
}

// GetRecentAnalyses lists verdicts newest-first with total count for
// pagination.
func (s *PostgresStore) GetRecentAnalyses(ctx context.Context, page, limit int) ([]AnalysisRecord, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	var totalCount int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM image_analyses`).Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	dataSQL := `
		SELECT request_id, image_hash, verdict, confidence, reason, mode,
		       fraud_score, risk_level, watermark_detected, processing_ms, analyzed_at
		FROM image_analyses
		ORDER BY analyzed_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.pool.Query(ctx, dataSQL, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records := make([]AnalysisRecord, 0)
	for rows.Next() {
		var r AnalysisRecord
		if err := rows.Scan(&r.RequestID, &r.ImageHash, &r.Verdict, &r.Confidence, &r.Reason,
			&r.Mode, &r.FraudScore, &r.RiskLevel, &r.WatermarkDetected, &r.ProcessingMS, &r.AnalyzedAt); err != nil {
			return nil, 0, err
		}
		records = append(records, r)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return records, totalCount, nil
}

// GetAnalysisByHash returns the stored full result for an image hash,
// or nil when the image has not been analyzed.
func (s *PostgresStore) GetAnalysisByHash(ctx context.Context, imageHash string) (*models.VerifyResult, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT result FROM image_analyses WHERE image_hash = $1`, imageHash).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(payload) == 0 {
		return nil, nil
	}
	var result models.VerifyResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decoding stored result: %v", err)
	}
	return &result, nil
}

// VerdictStats aggregates verdict counts for the dashboard endpoint.
type VerdictStats struct {
	Total        int `json:"total"`
	Real         int `json:"real"`
	AIGenerated  int `json:"aiGenerated"`
	Manipulated  int `json:"manipulated"`
	Inconclusive int `json:"inconclusive"`
}

func (s *PostgresStore) GetVerdictStats(ctx context.Context) (VerdictStats, error) {
	var stats VerdictStats
	sql := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE verdict = 'real'),
			COUNT(*) FILTER (WHERE verdict = 'ai_generated'),
			COUNT(*) FILTER (WHERE verdict = 'manipulated'),
			COUNT(*) FILTER (WHERE verdict = 'inconclusive')
		FROM image_analyses
	`
	err := s.pool.QueryRow(ctx, sql).Scan(
		&stats.Total, &stats.Real, &stats.AIGenerated, &stats.Manipulated, &stats.Inconclusive)
	return stats, err
}
