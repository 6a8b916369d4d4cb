package models

import "time"

type DistributionType string

const (
	DistInitial   DistributionType = "initial"
	DistEmission  DistributionType = "emission"
	DistScheduled DistributionType = "scheduled"
)

// DistributionModel describes how a token's supply is released: a one-time
// initial allocation, an optional flat per-period emission to every allocated
// address, and an optional schedule of discrete unlocks, each with its own
// designated recipient.
//
// Amounts are decimal strings because token amounts can exceed int64.
type DistributionModel struct {
	ID                  int64
	TokenCanisterID     string
	InitialDistribution map[string]string
	EmissionRate        *string
	UnlockSchedule      []UnlockEntry
	InitialExecutedAt   *time.Time
	LastEmissionTime    *time.Time
	CreatedAt           time.Time
}

type UnlockEntry struct {
	ID         int64
	ModelID    int64
	UnlockTime time.Time
	Addr       string
	Amount     string
	Executed   bool
	ExecutedAt *time.Time
}

// DistributionRecord is one append-only audit entry per transfer attempt,
// success or failure. BatchID groups all records written by one tick.
type DistributionRecord struct {
	ID               int64
	ModelID          int64
	BatchID          string
	DistributionType DistributionType
	Recipient        string
	Amount           string
	TxResult         string
	CreatedAt        time.Time
}
