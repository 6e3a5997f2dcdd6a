package repositories

import (
	"context"

	"github.com/satriahrh/kyc-voice/domain/entities"
)

// RecordSink persists a completed KYC record
type RecordSink interface {
	// Name identifies the sink in logs and errors
	Name() string
	Save(ctx context.Context, record *entities.KYCRecord, session *entities.KYCSession) error
}

// RecordRepository stores records for later lookup
type RecordRepository interface {
	RecordSink
	GetBySessionID(ctx context.Context, sessionID string) (*entities.KYCRecord, error)
}
