package domain

import "time"

// SyncState is the per-resource-kind status machine:
//
//	idle --start--> syncing --success--> synced
//	                syncing --failure--> error
//	synced|error --start--> syncing
//
// A start while the kind is already syncing is rejected with
// ErrSyncInProgress.
type SyncState string

const (
	StateIdle    SyncState = "idle"
	StateSyncing SyncState = "syncing"
	StateSynced  SyncState = "synced"
	StateError   SyncState = "error"
)

type SyncStatusRecord struct {
	Kind        ResourceKind `json:"kind"`
	State       SyncState    `json:"state"`
	LastSyncAt  *time.Time   `json:"lastSyncAt,omitempty"`
	RecordCount int          `json:"recordCount"`
	LastError   string       `json:"lastError,omitempty"`
}

// SyncRunSummary is the durable record of one full synchronization
// pass: per-kind record counts plus the message for any kind that
// failed. Written once at the end of a run.
type SyncRunSummary struct {
	RunID  string                  `json:"runId"`
	RunAt  time.Time               `json:"runAt"`
	Counts map[ResourceKind]int    `json:"counts"`
	Errors map[ResourceKind]string `json:"errors,omitempty"`
}
