package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/kyc-voice/domain/entities"
	"github.com/satriahrh/kyc-voice/domain/repositories"
)

// RecordsCollection holds one audit document per completed session
const RecordsCollection = "kyc_records"

// ErrRecordNotFound is returned when no record exists for a session
var ErrRecordNotFound = errors.New("kyc record not found")

// recordDocument is the stored shape: the record plus the session audit trail
type recordDocument struct {
	SessionID string                `bson:"session_id"`
	Record    entities.KYCRecord    `bson:"record"`
	State     entities.SessionState `bson:"state"`
	StartedAt time.Time             `bson:"started_at"`
	Attempts  []entities.AttemptLog `bson:"attempts"`
	SavedAt   time.Time             `bson:"saved_at"`
}

// RecordRepository stores KYC records in MongoDB
type RecordRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ repositories.RecordRepository = (*RecordRepository)(nil)

// NewRecordRepository creates a new MongoDB record repository
func NewRecordRepository(db *mongo.Database, logger *zap.Logger) *RecordRepository {
	return &RecordRepository{
		collection: db.Collection(RecordsCollection),
		logger:     logger,
	}
}

// EnsureIndexes makes session_id unique so a session is audited at most once
func (r *RecordRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create session_id index: %w", err)
	}
	return nil
}

func (r *RecordRepository) Name() string {
	return "mongodb:" + RecordsCollection
}

// Save implements repositories.RecordSink
func (r *RecordRepository) Save(ctx context.Context, record *entities.KYCRecord, session *entities.KYCSession) error {
	if record == nil || session == nil {
		return &entities.PersistenceError{Sink: r.Name(), Err: errors.New("record and session are required")}
	}

	doc := recordDocument{
		SessionID: session.ID,
		Record:    *record,
		State:     session.State,
		StartedAt: session.StartedAt,
		Attempts:  session.Attempts,
		SavedAt:   time.Now(),
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return &entities.PersistenceError{Sink: r.Name(), Err: fmt.Errorf("failed to insert record: %w", err)}
	}

	r.logger.Info("KYC record stored",
		zap.String("sessionID", session.ID),
		zap.Int("attempts", len(session.Attempts)))
	return nil
}

// GetBySessionID implements repositories.RecordRepository
func (r *RecordRepository) GetBySessionID(ctx context.Context, sessionID string) (*entities.KYCRecord, error) {
	if sessionID == "" {
		return nil, errors.New("session ID cannot be empty")
	}

	var doc recordDocument
	err := r.collection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return &doc.Record, nil
}
