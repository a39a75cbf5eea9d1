package entity

import "time"

// RunLogEntry records one job execution, per account or per job. Written once, never updated.
type RunLogEntry struct {
	ID             string    `bson:"_id" json:"id"`
	JobName        string    `bson:"jobName" json:"job_name"`
	AccountID      *uint     `bson:"accountId,omitempty" json:"account_id,omitempty"`
	StartedAt      time.Time `bson:"startedAt" json:"started_at"`
	FinishedAt     time.Time `bson:"finishedAt" json:"finished_at"`
	ItemsProcessed int       `bson:"itemsProcessed" json:"items_processed"`
	RecordsCreated int       `bson:"recordsCreated" json:"records_created"`
	RecordsUpdated int       `bson:"recordsUpdated" json:"records_updated"`
	Skipped        int       `bson:"skipped" json:"skipped"`
	Errored        int       `bson:"errored" json:"errored"`
	Error          string    `bson:"error,omitempty" json:"error,omitempty"`
}

// JobSummary is what a job firing reports back to the scheduler
type JobSummary struct {
	Processed      int `json:"processed"`
	Created        int `json:"created"`
	Updated        int `json:"updated"`
	Skipped        int `json:"skipped"`
	Errored        int `json:"errored"`
	Accounts       int `json:"accounts"`
	AccountsFailed int `json:"accounts_failed"`
}

// Add accumulates another summary into s
func (s *JobSummary) Add(o JobSummary) {
	s.Processed += o.Processed
	s.Created += o.Created
	s.Updated += o.Updated
	s.Skipped += o.Skipped
	s.Errored += o.Errored
	s.Accounts += o.Accounts
	s.AccountsFailed += o.AccountsFailed
}

// NewRunLogEntry builds an entry from a summary. accountID is nil for job-level entries.
func NewRunLogEntry(jobName string, accountID *uint, startedAt, finishedAt time.Time, s JobSummary, err error) *RunLogEntry {
	entry := &RunLogEntry{
		JobName:        jobName,
		AccountID:      accountID,
		StartedAt:      startedAt,
		FinishedAt:     finishedAt,
		ItemsProcessed: s.Processed,
		RecordsCreated: s.Created,
		RecordsUpdated: s.Updated,
		Skipped:        s.Skipped,
		Errored:        s.Errored,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	return entry
}
