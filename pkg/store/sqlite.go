package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/veriscope/screening/pkg/domain"
	"github.com/veriscope/screening/pkg/sar"
)

// SQLiteCheckpointStore implements sar.CheckpointStore against an
// embeddable SQLite database, grounded in the teacher's
// SQLiteReceiptStore: a migrate-on-construct table, an append-only INSERT,
// no UPDATE/DELETE statement anywhere in the type.
type SQLiteCheckpointStore struct {
	db *sql.DB
}

func NewSQLiteCheckpointStore(db *sql.DB) (*SQLiteCheckpointStore, error) {
	s := &SQLiteCheckpointStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteCheckpointStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		screening_id TEXT NOT NULL,
		info_type TEXT NOT NULL,
		phase TEXT NOT NULL,
		state JSON NOT NULL,
		facts JSON NOT NULL,
		findings JSON NOT NULL,
		taken_at DATETIME NOT NULL
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteCheckpointStore) AppendCheckpoint(ctx context.Context, cp sar.Checkpoint) error {
	stateJSON, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("store: marshal checkpoint state: %w", err)
	}
	factsJSON, err := json.Marshal(cp.Facts)
	if err != nil {
		return fmt.Errorf("store: marshal checkpoint facts: %w", err)
	}
	findingsJSON, err := json.Marshal(cp.Findings)
	if err != nil {
		return fmt.Errorf("store: marshal checkpoint findings: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (screening_id, info_type, phase, state, facts, findings, taken_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cp.ScreeningID.String(), string(cp.InfoType), string(cp.Phase), stateJSON, factsJSON, findingsJSON,
		cp.TakenAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store: append checkpoint: %w", err)
	}
	return nil
}

func (s *SQLiteCheckpointStore) ListCheckpoints(ctx context.Context, screeningID uuid.UUID) ([]sar.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT screening_id, info_type, phase, state, facts, findings, taken_at
		 FROM checkpoints WHERE screening_id = ? ORDER BY taken_at`, screeningID.String())
	if err != nil {
		return nil, fmt.Errorf("store: list checkpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []sar.Checkpoint
	for rows.Next() {
		var (
			screeningIDStr string
			infoType       string
			phase          string
			stateJSON      []byte
			factsJSON      []byte
			findingsJSON   []byte
			takenAtStr     string
		)
		if scanErr := rows.Scan(&screeningIDStr, &infoType, &phase, &stateJSON, &factsJSON, &findingsJSON, &takenAtStr); scanErr != nil {
			return nil, fmt.Errorf("store: scan checkpoint: %w", scanErr)
		}

		cp := sar.Checkpoint{InfoType: domain.InformationType(infoType), Phase: sar.Phase(phase)}
		if cp.ScreeningID, err = uuid.Parse(screeningIDStr); err != nil {
			return nil, fmt.Errorf("store: parse screening_id: %w", err)
		}
		if err := json.Unmarshal(stateJSON, &cp.State); err != nil {
			return nil, fmt.Errorf("store: unmarshal checkpoint state: %w", err)
		}
		if err := json.Unmarshal(factsJSON, &cp.Facts); err != nil {
			return nil, fmt.Errorf("store: unmarshal checkpoint facts: %w", err)
		}
		if err := json.Unmarshal(findingsJSON, &cp.Findings); err != nil {
			return nil, fmt.Errorf("store: unmarshal checkpoint findings: %w", err)
		}
		if cp.TakenAt, err = time.Parse(time.RFC3339Nano, takenAtStr); err != nil {
			return nil, fmt.Errorf("store: parse taken_at: %w", err)
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}
