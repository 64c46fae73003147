package core

import "time"

// Sync states of a stored snapshot with respect to the progress export.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

// Snapshot is the last successfully fetched dashboard data of one user.
// Version increases by one on every save for the same user.
type Snapshot struct {
	UserID       int64               `json:"userId"`
	Login        string              `json:"login"`
	Email        string              `json:"email,omitempty"`
	Version      int64               `json:"version"`
	FetchedAt    time.Time           `json:"fetchedAt"`
	SyncStatus   string              `json:"syncStatus,omitempty"`
	Transactions []TransactionRecord `json:"transactions"`
	Skills       []SkillScore        `json:"skills"`
	Audit        AuditSummary        `json:"audit"`
}

// User returns the user identity recorded in the snapshot.
func (s Snapshot) User() User {
	return User{ID: s.UserID, Login: s.Login, Email: s.Email}
}
