package storage

import "poolscope/internal/model"

// Storage is a sink for raw log records fetched from the chain. Batches map
// to one FilterLogs window; a sink must tolerate overlapping batches when a
// run resumes from a checkpoint.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}
