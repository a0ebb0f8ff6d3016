package main

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
	"github.com/stretchr/testify/mock"
)

// MockAuditStore is a mock implementation of AuditStore
type MockAuditStore struct {
	mock.Mock
}

func (m *MockAuditStore) PutAuditRecord(ctx context.Context, rec AuditRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// MockDownloader is a mock implementation of s3manageriface.DownloaderAPI. The first return
// value of an expectation is the object body written to the destination.
type MockDownloader struct {
	mock.Mock
}

func (m *MockDownloader) Download(w io.WriterAt, input *s3.GetObjectInput, options ...func(*s3manager.Downloader)) (int64, error) {
	return m.DownloadWithContext(context.Background(), w, input, options...)
}

func (m *MockDownloader) DownloadWithContext(ctx aws.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*s3manager.Downloader)) (int64, error) {
	args := m.Called(ctx, input)
	if err := args.Error(1); err != nil {
		return 0, err
	}
	data, _ := args.Get(0).([]byte)
	n, err := w.WriteAt(data, 0)
	return int64(n), err
}

// MockSES is a mock of the one SES call the dispatcher makes
type MockSES struct {
	sesiface.SESAPI
	mock.Mock
}

func (m *MockSES) SendRawEmailWithContext(ctx aws.Context, input *ses.SendRawEmailInput, opts ...request.Option) (*ses.SendRawEmailOutput, error) {
	args := m.Called(ctx, input)
	if out := args.Get(0); out != nil {
		return out.(*ses.SendRawEmailOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockDynamo is a mock of the one DynamoDB call the audit store makes
type MockDynamo struct {
	dynamodbiface.DynamoDBAPI
	mock.Mock
}

func (m *MockDynamo) PutItemWithContext(ctx aws.Context, input *dynamodb.PutItemInput, opts ...request.Option) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, input)
	if out := args.Get(0); out != nil {
		return out.(*dynamodb.PutItemOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func s3Event(bucket string, key string) []byte {
	return []byte(fmt.Sprintf(`{"Records":[{"eventSource":"aws:s3","awsRegion":"us-east-1","eventName":"ObjectCreated:Put",`+
		`"s3":{"bucket":{"name":%q},"object":{"key":%q,"size":12}}}]}`, bucket, key))
}

//
// end of file
//
