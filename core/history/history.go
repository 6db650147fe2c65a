// Package history persists completed question records per session, backed by
// BadgerDB. It doubles as the orchestration record sink.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	orchestration "github.com/koscakluka/tutor-core/core"
)

const keyPrefix = "record/"

// Store is a badger-backed question history. It implements
// orchestration.RecordSink.
type Store struct {
	db *badger.DB
}

// Options configures the history store.
type Options struct {
	// Dir is the directory for data files. Required unless InMemory is set.
	Dir string

	// InMemory runs the store without disk persistence. Used in tests.
	InMemory bool

	// Logger overrides the badger logger. Defaults to a quiet logger that
	// only surfaces warnings and errors.
	Logger badger.Logger
}

func New(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("history: Options.Dir is required for on-disk mode")
	}

	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	if opts.Logger != nil {
		dbOpts = dbOpts.WithLogger(opts.Logger)
	} else {
		dbOpts = dbOpts.WithLogger(quietLogger{})
	}

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("history: failed to open store: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveRecord appends a record to its session's history.
func (s *Store) SaveRecord(_ context.Context, record orchestration.QuestionRecord) error {
	if record.SessionID == "" {
		return errors.New("history: record has no session id")
	}
	if record.AskedAt.IsZero() {
		record.AskedAt = time.Now()
	}

	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("history: failed to marshal record: %w", err)
	}

	key := recordKey(record.SessionID, record.AskedAt)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Records yields a session's records in ask order.
func (s *Store) Records(_ context.Context, sessionID string) iter.Seq2[orchestration.QuestionRecord, error] {
	prefix := []byte(keyPrefix + sessionID + "/")

	return func(yield func(orchestration.QuestionRecord, error) bool) {
		err := s.db.View(func(txn *badger.Txn) error {
			iterOpts := badger.DefaultIteratorOptions
			iterOpts.Prefix = prefix
			it := txn.NewIterator(iterOpts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				value, err := it.Item().ValueCopy(nil)
				if err != nil {
					if !yield(orchestration.QuestionRecord{}, err) {
						return nil
					}
					continue
				}

				var record orchestration.QuestionRecord
				if err := json.Unmarshal(value, &record); err != nil {
					if !yield(orchestration.QuestionRecord{}, fmt.Errorf("history: corrupt record: %w", err)) {
						return nil
					}
					continue
				}
				if !yield(record, nil) {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			yield(orchestration.QuestionRecord{}, err)
		}
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func recordKey(sessionID string, askedAt time.Time) []byte {
	return []byte(keyPrefix + sessionID + "/" + askedAt.UTC().Format(time.RFC3339Nano))
}

// quietLogger suppresses badger's info and debug chatter.
type quietLogger struct{}

func (quietLogger) Errorf(f string, v ...interface{})   { log.Printf("[history] ERROR: "+f, v...) }
func (quietLogger) Warningf(f string, v ...interface{}) { log.Printf("[history] WARN: "+f, v...) }
func (quietLogger) Infof(string, ...interface{})        {}
func (quietLogger) Debugf(string, ...interface{})       {}
