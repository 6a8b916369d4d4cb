package store

import (
	"context"
	"database/sql"
	"time"

	"govhub/internal/models"
)

func (s *Store) CreateDistributionModel(ctx context.Context, model *models.DistributionModel) (int64, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO distribution_models (token_canister_id, emission_rate)
		VALUES ($1, $2)
		RETURNING id
	`, model.TokenCanisterID, model.EmissionRate).Scan(&id)
	if err != nil {
		return 0, err
	}

	for addr, amount := range model.InitialDistribution {
		if _, err := tx.Exec(ctx, `
			INSERT INTO distribution_allocations (model_id, address, amount)
			VALUES ($1, $2, $3)
		`, id, addr, amount); err != nil {
			return 0, err
		}
	}

	for _, entry := range model.UnlockSchedule {
		if _, err := tx.Exec(ctx, `
			INSERT INTO unlock_entries (model_id, unlock_time, address, amount)
			VALUES ($1, $2, $3, $4)
		`, id, entry.UnlockTime, entry.Addr, entry.Amount); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) GetDistributionModel(ctx context.Context, id int64) (*models.DistributionModel, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, token_canister_id, emission_rate, initial_executed_at, last_emission_time, created_at
		FROM distribution_models WHERE id=$1
	`, id)

	var model models.DistributionModel
	var emissionRate sql.NullString
	var initialExecutedAt, lastEmissionTime sql.NullTime
	err := row.Scan(
		&model.ID,
		&model.TokenCanisterID,
		&emissionRate,
		&initialExecutedAt,
		&lastEmissionTime,
		&model.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if emissionRate.Valid {
		model.EmissionRate = &emissionRate.String
	}
	if initialExecutedAt.Valid {
		model.InitialExecutedAt = &initialExecutedAt.Time
	}
	if lastEmissionTime.Valid {
		model.LastEmissionTime = &lastEmissionTime.Time
	}

	model.InitialDistribution = map[string]string{}
	rows, err := s.Pool.Query(ctx, `
		SELECT address, amount FROM distribution_allocations WHERE model_id=$1
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var addr, amount string
		if err := rows.Scan(&addr, &amount); err != nil {
			return nil, err
		}
		model.InitialDistribution[addr] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	entryRows, err := s.Pool.Query(ctx, `
		SELECT id, model_id, unlock_time, address, amount, executed, executed_at
		FROM unlock_entries WHERE model_id=$1 ORDER BY unlock_time, id
	`, id)
	if err != nil {
		return nil, err
	}
	defer entryRows.Close()
	for entryRows.Next() {
		var entry models.UnlockEntry
		var executedAt sql.NullTime
		if err := entryRows.Scan(
			&entry.ID,
			&entry.ModelID,
			&entry.UnlockTime,
			&entry.Addr,
			&entry.Amount,
			&entry.Executed,
			&executedAt,
		); err != nil {
			return nil, err
		}
		if executedAt.Valid {
			entry.ExecutedAt = &executedAt.Time
		}
		model.UnlockSchedule = append(model.UnlockSchedule, entry)
	}
	return &model, entryRows.Err()
}

func (s *Store) ListDistributionModelIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id FROM distribution_models ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) MarkInitialExecuted(ctx context.Context, modelID int64, at time.Time) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE distribution_models SET initial_executed_at=$2
		WHERE id=$1 AND initial_executed_at IS NULL
	`, modelID, at)
	return err
}

func (s *Store) SetLastEmissionTime(ctx context.Context, modelID int64, at time.Time) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE distribution_models SET last_emission_time=$2 WHERE id=$1
	`, modelID, at)
	return err
}

// MarkUnlockExecuted claims an unlock entry. The WHERE executed=false guard
// makes each entry fire at most once, even across concurrent workers.
func (s *Store) MarkUnlockExecuted(ctx context.Context, entryID int64, at time.Time) (bool, error) {
	res, err := s.Pool.Exec(ctx, `
		UPDATE unlock_entries SET executed=true, executed_at=$2
		WHERE id=$1 AND executed=false
	`, entryID, at)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func (s *Store) AddDistributionRecord(ctx context.Context, record *models.DistributionRecord) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO distribution_records (
			model_id, batch_id, distribution_type, recipient, amount, tx_result, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		record.ModelID,
		record.BatchID,
		record.DistributionType,
		record.Recipient,
		record.Amount,
		record.TxResult,
		record.CreatedAt,
	)
	return err
}

func (s *Store) ListDistributionRecords(ctx context.Context, modelID, start int64, limit int) ([]models.DistributionRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, model_id, batch_id, distribution_type, recipient, amount, tx_result, created_at
		FROM distribution_records
		WHERE model_id=$1 AND id >= $2
		ORDER BY id
		LIMIT $3
	`, modelID, start, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.DistributionRecord
	for rows.Next() {
		var record models.DistributionRecord
		if err := rows.Scan(
			&record.ID,
			&record.ModelID,
			&record.BatchID,
			&record.DistributionType,
			&record.Recipient,
			&record.Amount,
			&record.TxResult,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
