package analytics

import (
	"fmt"
	"time"
)

type DataCollectorConfig struct {
	FileName      string
	CollectorType DataCollectorType
}

type DataCollectorType string

const NOOP_DATA_COLLECTOR DataCollectorType = "NOOP_DATA_COLLECTOR"
const LOG_FILE_DATA_COLLECTOR DataCollectorType = "LOG_FILE_DATA_COLLECTOR"

// ActionRecord identifies one action invocation inside a step.
type ActionRecord struct {
	WorkflowId  string
	ExecutionId string
	StepId      string
	ActionType  string
	ActionIndex int
	Duration    time.Duration
}

type WorkflowDataCollector interface {
	RecordActionSuccess(rec ActionRecord, data map[string]any)
	RecordActionFailure(rec ActionRecord, reason string)
	Close() error
}

func NewDataCollector(config DataCollectorConfig) (WorkflowDataCollector, error) {
	switch config.CollectorType {
	case "", NOOP_DATA_COLLECTOR:
		return NoopDataCollector{}, nil
	case LOG_FILE_DATA_COLLECTOR:
		c, err := NewLogFileDataCollector(config.FileName)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown data collector type %s", config.CollectorType)
}

type NoopDataCollector struct{}

var _ WorkflowDataCollector = NoopDataCollector{}

func (NoopDataCollector) RecordActionSuccess(rec ActionRecord, data map[string]any) {}

func (NoopDataCollector) RecordActionFailure(rec ActionRecord, reason string) {}

func (NoopDataCollector) Close() error { return nil }
