package jsonfile

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/google/renameio/v2"
	"go.uber.org/zap"

	"github.com/satriahrh/kyc-voice/domain/entities"
	"github.com/satriahrh/kyc-voice/domain/repositories"
)

// DefaultPath is where the record is written when no path is configured
const DefaultPath = "kyc_session.json"

// RecordWriter writes the KYC record as an indented JSON document
type RecordWriter struct {
	path   string
	logger *zap.Logger
}

var _ repositories.RecordSink = (*RecordWriter)(nil)

func NewRecordWriter(path string, logger *zap.Logger) *RecordWriter {
	if path == "" {
		path = DefaultPath
	}
	return &RecordWriter{path: path, logger: logger}
}

func (w *RecordWriter) Name() string {
	return w.path
}

// Save replaces the file atomically: readers see either the previous record
// or the new one, never a partial write
func (w *RecordWriter) Save(ctx context.Context, record *entities.KYCRecord, session *entities.KYCSession) error {
	data, err := Encode(record)
	if err != nil {
		return &entities.PersistenceError{Sink: w.path, Err: err}
	}

	pendingFile, err := renameio.NewPendingFile(w.path, renameio.WithPermissions(0o600))
	if err != nil {
		return &entities.PersistenceError{Sink: w.path, Err: fmt.Errorf("create pending file: %w", err)}
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			w.logger.Debug("Cleanup pending record file", zap.Error(err))
		}
	}()

	if _, err := pendingFile.Write(data); err != nil {
		return &entities.PersistenceError{Sink: w.path, Err: fmt.Errorf("write record: %w", err)}
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return &entities.PersistenceError{Sink: w.path, Err: fmt.Errorf("atomically replace record file: %w", err)}
	}

	w.logger.Info("KYC record written", zap.String("path", w.path))
	return nil
}

// Encode renders record with two-space indentation and a trailing newline
func Encode(record *entities.KYCRecord) ([]byte, error) {
	data, err := sonic.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return append(data, '\n'), nil
}
