package amqp

import (
	"encoding/json"
	"time"
)

// RunComputeMessage asks the payroll worker to compute a queued run.
// It carries only identifiers; the worker loads the run and its employees
// from the database so stale payloads cannot overwrite fresher state.
type RunComputeMessage struct {
	RunID     int64     `json:"run_id"`
	CompanyID int64     `json:"company_id"`
	Attempt   int       `json:"attempt"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRunComputeMessage creates a compute request for a run
func NewRunComputeMessage(runID, companyID int64) *RunComputeMessage {
	return &RunComputeMessage{
		RunID:     runID,
		CompanyID: companyID,
		Attempt:   1,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RunComputeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RunComputeMessageFromJSON creates a message from JSON bytes
func RunComputeMessageFromJSON(data []byte) (*RunComputeMessage, error) {
	var msg RunComputeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// RegisterExportMessage asks the worker to export a posted run's payroll
// register to the configured spreadsheet.
type RegisterExportMessage struct {
	RunID     int64     `json:"run_id"`
	CompanyID int64     `json:"company_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRegisterExportMessage creates an export request for a posted run
func NewRegisterExportMessage(runID, companyID int64) *RegisterExportMessage {
	return &RegisterExportMessage{
		RunID:     runID,
		CompanyID: companyID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RegisterExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RegisterExportMessageFromJSON creates a message from JSON bytes
func RegisterExportMessageFromJSON(data []byte) (*RegisterExportMessage, error) {
	var msg RegisterExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
