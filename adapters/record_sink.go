package adapters

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/kyc-voice/domain/entities"
	"github.com/satriahrh/kyc-voice/domain/repositories"
)

// RecordSink writes to a primary sink, then copies the record to audit sinks.
// Only a primary failure fails the save; the record is already durable by the
// time the audit sinks run, so their failures are logged.
type RecordSink struct {
	primary repositories.RecordSink
	audits  []repositories.RecordSink
	logger  *zap.Logger
}

var _ repositories.RecordSink = (*RecordSink)(nil)

func NewRecordSink(primary repositories.RecordSink, logger *zap.Logger, audits ...repositories.RecordSink) *RecordSink {
	return &RecordSink{primary: primary, audits: audits, logger: logger}
}

func (s *RecordSink) Name() string {
	names := []string{s.primary.Name()}
	for _, a := range s.audits {
		names = append(names, a.Name())
	}
	return strings.Join(names, "+")
}

func (s *RecordSink) Save(ctx context.Context, record *entities.KYCRecord, session *entities.KYCSession) error {
	if err := s.primary.Save(ctx, record, session); err != nil {
		return err
	}

	for _, audit := range s.audits {
		if err := audit.Save(ctx, record, session); err != nil {
			s.logger.Error("Failed to write audit copy of KYC record",
				zap.String("sink", audit.Name()),
				zap.Error(err))
		}
	}
	return nil
}
