// Package distribution evaluates a token's distribution model on each tick:
// the one-time initial allocation, the per-period emission, and discrete
// unlock-schedule entries. Every transfer attempt, success or failure, is
// written to the audit trail.
package distribution

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"govhub/internal/ledger"
	"govhub/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ModelStore is the slice of the store the scheduler needs. *store.Store
// implements it.
type ModelStore interface {
	GetDistributionModel(ctx context.Context, id int64) (*models.DistributionModel, error)
	MarkInitialExecuted(ctx context.Context, modelID int64, at time.Time) error
	SetLastEmissionTime(ctx context.Context, modelID int64, at time.Time) error
	MarkUnlockExecuted(ctx context.Context, entryID int64, at time.Time) (bool, error)
	AddDistributionRecord(ctx context.Context, record *models.DistributionRecord) error
}

// TokenService sends on an explicitly addressed ICRC ledger.
// *ledger.Gateway implements it.
type TokenService interface {
	ICRC1TransferTo(ctx context.Context, canisterID string, from *[32]byte, to ledger.Account, amount *big.Int) (uint64, error)
}

type Scheduler struct {
	Store  ModelStore
	Tokens TokenService

	// HolderSubaccount is the subaccount all distributions are paid out of.
	HolderSubaccount [32]byte

	// EmissionSpacing is the minimum gap between two emission rounds.
	EmissionSpacing time.Duration

	Log *zap.Logger
	Now func() time.Time
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// RunModel is one distribution tick. Transfer failures are recorded and
// skipped, never fatal: one bad recipient must not block the rest.
func (s *Scheduler) RunModel(ctx context.Context, modelID int64) error {
	model, err := s.Store.GetDistributionModel(ctx, modelID)
	if err != nil {
		return fmt.Errorf("load distribution model %d: %w", modelID, err)
	}

	now := s.now()
	batchID := uuid.NewString()

	if model.InitialExecutedAt == nil && len(model.InitialDistribution) > 0 {
		s.distributeAll(ctx, model, nil, models.DistInitial, batchID)
		if err := s.Store.MarkInitialExecuted(ctx, modelID, now); err != nil {
			return fmt.Errorf("mark initial executed: %w", err)
		}
	}

	if model.EmissionRate != nil {
		due := model.LastEmissionTime == nil || now.Sub(*model.LastEmissionTime) >= s.EmissionSpacing
		if due {
			rate, err := parseAmount(*model.EmissionRate)
			if err != nil {
				s.Log.Error("bad emission rate", zap.Int64("model", modelID), zap.Error(err))
			} else {
				s.distributeAll(ctx, model, rate, models.DistEmission, batchID)
				if err := s.Store.SetLastEmissionTime(ctx, modelID, now); err != nil {
					return fmt.Errorf("set last emission time: %w", err)
				}
			}
		}
	}

	for _, entry := range model.UnlockSchedule {
		if entry.Executed || entry.UnlockTime.After(now) {
			continue
		}
		// Claim before transferring: at most one attempt per entry, ever.
		claimed, err := s.Store.MarkUnlockExecuted(ctx, entry.ID, now)
		if err != nil {
			return fmt.Errorf("mark unlock executed: %w", err)
		}
		if !claimed {
			continue
		}
		amount, err := parseAmount(entry.Amount)
		if err != nil {
			s.record(ctx, model, models.DistScheduled, batchID, entry.Addr, entry.Amount, "error: "+err.Error())
			continue
		}
		s.distributeOne(ctx, model, entry.Addr, amount, models.DistScheduled, batchID)
	}

	return nil
}

func (s *Scheduler) distributeAll(ctx context.Context, model *models.DistributionModel, override *big.Int, distType models.DistributionType, batchID string) {
	for addr, allocated := range model.InitialDistribution {
		amount := override
		if amount == nil {
			parsed, err := parseAmount(allocated)
			if err != nil {
				s.record(ctx, model, distType, batchID, addr, allocated, "error: "+err.Error())
				continue
			}
			amount = parsed
		}
		s.distributeOne(ctx, model, addr, amount, distType, batchID)
	}
}

func (s *Scheduler) distributeOne(ctx context.Context, model *models.DistributionModel, addr string, amount *big.Int, distType models.DistributionType, batchID string) {
	result, ok := s.transfer(ctx, model, addr, amount)
	if ok {
		s.Log.Info("distributed tokens",
			zap.String("type", string(distType)),
			zap.String("recipient", addr),
			zap.String("amount", amount.String()),
			zap.Int64("model", model.ID))
	} else {
		s.Log.Warn("distribution transfer failed",
			zap.String("type", string(distType)),
			zap.String("recipient", addr),
			zap.String("amount", amount.String()),
			zap.Int64("model", model.ID),
			zap.String("result", result))
	}
	s.record(ctx, model, distType, batchID, addr, amount.String(), result)
}

func (s *Scheduler) transfer(ctx context.Context, model *models.DistributionModel, addr string, amount *big.Int) (string, bool) {
	account, err := ledger.AccountFromText(addr)
	if err != nil {
		return "error: " + err.Error(), false
	}
	from := s.HolderSubaccount
	height, err := s.Tokens.ICRC1TransferTo(ctx, model.TokenCanisterID, &from, account, amount)
	if err != nil {
		return "error: " + err.Error(), false
	}
	return fmt.Sprintf("success: height %d", height), true
}

func (s *Scheduler) record(ctx context.Context, model *models.DistributionModel, distType models.DistributionType, batchID, recipient, amount, result string) {
	record := &models.DistributionRecord{
		ModelID:          model.ID,
		BatchID:          batchID,
		DistributionType: distType,
		Recipient:        recipient,
		Amount:           amount,
		TxResult:         result,
		CreatedAt:        s.now(),
	}
	if err := s.Store.AddDistributionRecord(ctx, record); err != nil {
		s.Log.Error("append distribution record", zap.Int64("model", model.ID), zap.Error(err))
	}
}

func parseAmount(v string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(v, 10)
	if !ok || amount.Sign() < 0 {
		return nil, errors.New("malformed amount " + v)
	}
	return amount, nil
}
