package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOverdueScan flags sent invoices whose due date passed.
	TaskOverdueScan = "invoicing:overdue_scan"
	// TaskLedgerIntegrity verifies the balance invariant across validated entries.
	TaskLedgerIntegrity = "ledger:integrity_check"
)

// NewOverdueScanTask constructs the overdue scan task. The scan takes no
// payload; it always covers every organization.
func NewOverdueScanTask() *asynq.Task {
	return asynq.NewTask(TaskOverdueScan, nil)
}

// NewLedgerIntegrityTask constructs the ledger integrity check task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerIntegrity, nil)
}
