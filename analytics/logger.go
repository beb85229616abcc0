package analytics

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogFileDataCollector appends one JSON line per action outcome to a file.
type LogFileDataCollector struct {
	fileName string
	file     *os.File
	logger   *zap.Logger
}

var _ WorkflowDataCollector = new(LogFileDataCollector)

func NewLogFileDataCollector(fileName string) (*LogFileDataCollector, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.StacktraceKey = ""
	encoderConfig.CallerKey = ""
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)
	logFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(fileEncoder, zapcore.AddSync(logFile), zapcore.InfoLevel)
	return &LogFileDataCollector{
		fileName: fileName,
		file:     logFile,
		logger:   zap.New(core),
	}, nil
}

func recordFields(rec ActionRecord) []zap.Field {
	return []zap.Field{
		zap.String("workflowId", rec.WorkflowId),
		zap.String("executionId", rec.ExecutionId),
		zap.String("stepId", rec.StepId),
		zap.String("action", rec.ActionType),
		zap.Int("actionIndex", rec.ActionIndex),
		zap.Duration("duration", rec.Duration),
	}
}

func (lc *LogFileDataCollector) RecordActionSuccess(rec ActionRecord, data map[string]any) {
	lc.logger.Info("success", append(recordFields(rec), zap.Any("data", data))...)
}

func (lc *LogFileDataCollector) RecordActionFailure(rec ActionRecord, reason string) {
	lc.logger.Info("failure", append(recordFields(rec), zap.String("reason", reason))...)
}

func (lc *LogFileDataCollector) Close() error {
	_ = lc.logger.Sync()
	return lc.file.Close()
}
