package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// creation time layout, YYYY-MM-DD, HH:MM:SS
const creationTimeLayout = "2006-01-02, 15:04:05"

// AuditRecord is the item written for every processed object. The attribute names are
// those of the existing audit table, keyed by Object_name.
type AuditRecord struct {
	ObjectName   string `dynamodbav:"Object_name"`
	CreationTime string `dynamodbav:"Creation_time"`
	Locator      string `dynamodbav:"S3_URI"`
}

// AuditStore persists audit records. A repeated object name overwrites the earlier record.
type AuditStore interface {
	PutAuditRecord(ctx context.Context, rec AuditRecord) error
}

// AuditRecorder writes one audit record per processed object
type AuditRecorder struct {
	store  AuditStore
	now    func() time.Time
	logger *zap.Logger
}

func NewAuditRecorder(store AuditStore, now func() time.Time, logger *zap.Logger) *AuditRecorder {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &AuditRecorder{store: store, now: now, logger: logger}
}

// withLogger returns a copy of the recorder that logs through the supplied logger
func (r *AuditRecorder) withLogger(logger *zap.Logger) *AuditRecorder {
	c := *r
	c.logger = logger
	return &c
}

// Record writes the audit record for the supplied object. A failed write is returned as a
// StorageWriteError and is not retried.
func (r *AuditRecorder) Record(ctx context.Context, obj ObjectRef) (*AuditRecord, error) {

	rec := AuditRecord{
		ObjectName:   obj.Key,
		CreationTime: r.now().Format(creationTimeLayout),
		Locator:      objectLocator(obj.Bucket, obj.Key),
	}

	if err := r.store.PutAuditRecord(ctx, rec); err != nil {
		return nil, newNotifierError(KindStorageWrite, fmt.Sprintf("cannot record %s", rec.Locator), err)
	}

	r.logger.Info("audit record written", zap.String("locator", rec.Locator), zap.String("creation_time", rec.CreationTime))
	return &rec, nil
}

// objectLocator returns the s3:// URI of an object
func objectLocator(bucket string, key string) string {
	return "s3://" + bucket + "/" + key
}

//
// DynamoDB backed audit store
//

type dynamoAuditStore struct {
	svc   dynamodbiface.DynamoDBAPI
	table string
}

func newDynamoAuditStore(svc dynamodbiface.DynamoDBAPI, table string) *dynamoAuditStore {
	return &dynamoAuditStore{svc: svc, table: table}
}

func (s *dynamoAuditStore) PutAuditRecord(ctx context.Context, rec AuditRecord) error {

	item, err := dynamodbattribute.MarshalMap(rec)
	if err != nil {
		return err
	}

	_, err = s.svc.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	return err
}

//
// SQLite backed audit store, for running outside AWS
//

type sqliteAuditStore struct {
	db    *sql.DB
	table string
}

func newSqliteAuditStore(path string, table string) (*sqliteAuditStore, error) {

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("cannot open audit database: %w", err)
	}
	// one writer at a time; concurrent workers queue on the pool instead of failing with SQLITE_BUSY
	db.SetMaxOpenConns(1)

	s := &sqliteAuditStore{db: db, table: table}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// sqliteDSN adds the busy timeout and WAL journal pragmas to a database path
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (s *sqliteAuditStore) initSchema() error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
		Object_name   TEXT PRIMARY KEY,
		Creation_time TEXT NOT NULL,
		S3_URI        TEXT NOT NULL
	)`, s.table)
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("cannot create audit table: %w", err)
	}
	return nil
}

func (s *sqliteAuditStore) PutAuditRecord(ctx context.Context, rec AuditRecord) error {
	stmt := fmt.Sprintf(`INSERT OR REPLACE INTO %q (Object_name, Creation_time, S3_URI) VALUES (?, ?, ?)`, s.table)
	_, err := s.db.ExecContext(ctx, stmt, rec.ObjectName, rec.CreationTime, rec.Locator)
	return err
}

func (s *sqliteAuditStore) Close() error {
	return s.db.Close()
}

//
// end of file
//
