package audit

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/your-org/auth-gateway/internal/config"
	"github.com/your-org/auth-gateway/internal/domain"
)

// BoltExporter persists audit events to a local append-only database, one
// bucket per UTC day. Events are only ever written, never updated, so the
// stored chain stays verifiable.
type BoltExporter struct {
	db *bolt.DB
}

// NewBoltExporter opens (or creates) the database file.
func NewBoltExporter(cfg config.BoltExportConfig) (*BoltExporter, error) {
	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	return &BoltExporter{db: db}, nil
}

// Export appends one event to its day bucket.
func (e *BoltExporter) Export(ctx context.Context, event *domain.AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	day := event.Timestamp.UTC().Format("2006-01-02")
	return e.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(day))
		if err != nil {
			return err
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return bucket.Put(key, data)
	})
}

// EventsForDay returns all events stored for the UTC day (format 2006-01-02)
// in append order.
func (e *BoltExporter) EventsForDay(day string) ([]*domain.AuditEvent, error) {
	var events []*domain.AuditEvent
	err := e.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(day))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, v []byte) error {
			var event domain.AuditEvent
			if err := json.Unmarshal(v, &event); err != nil {
				return err
			}
			events = append(events, &event)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// VerifyDay checks the stored chain for the UTC day.
func (e *BoltExporter) VerifyDay(day string) (VerifyReport, error) {
	events, err := e.EventsForDay(day)
	if err != nil {
		return VerifyReport{}, err
	}
	report := VerifyReport{Checked: len(events), OK: true}
	return verifyEvents(events, report), nil
}

// Name returns the exporter name.
func (e *BoltExporter) Name() string {
	return "bolt"
}

// Close closes the database.
func (e *BoltExporter) Close() error {
	return e.db.Close()
}
