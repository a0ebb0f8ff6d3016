package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAttachmentName(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"q1.pdf", "q1.pdf"},
		{"reports/2024/q1.pdf", "q1.pdf"},
		{"reports/2024/", "2024"},
		{"/", "attachment"},
		{"", "attachment"},
		{"a/..", "attachment"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, attachmentName(tt.key), "key %q", tt.key)
	}
}

func TestStagingArea(t *testing.T) {
	base := t.TempDir()

	first, err := newStagingArea(base, "inv/1")
	require.NoError(t, err)
	second, err := newStagingArea(base, "inv/1")
	require.NoError(t, err)

	// same invocation id, separate directories
	assert.NotEqual(t, first.dir, second.dir)
	assert.Equal(t, base, filepath.Dir(first.dir))

	require.NoError(t, os.WriteFile(first.path("q1.pdf"), []byte("x"), 0o600))
	require.NoError(t, first.Release())
	require.NoError(t, second.Release())

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestObjectFetcher_Fetch(t *testing.T) {
	downloader := new(MockDownloader)
	fetcher := NewObjectFetcher(downloader, zap.NewNop())

	staging, err := newStagingArea(t.TempDir(), "inv-1")
	require.NoError(t, err)
	defer staging.Release()

	downloader.On("DownloadWithContext", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.StringValue(in.Bucket) == "reports" && aws.StringValue(in.Key) == "2024/q1.pdf"
	})).Return([]byte("%PDF-1.4 report"), nil).Once()

	staged, err := fetcher.Fetch(context.Background(), ObjectRef{Bucket: "reports", Key: "2024/q1.pdf"}, staging)
	require.NoError(t, err)

	assert.Equal(t, staging.path("q1.pdf"), staged.Path)
	assert.Equal(t, int64(15), staged.Size)
	data, err := os.ReadFile(staged.Path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 report", string(data))
	downloader.AssertExpectations(t)
}

func TestObjectFetcher_NotFound(t *testing.T) {
	downloader := new(MockDownloader)
	fetcher := NewObjectFetcher(downloader, zap.NewNop())

	staging, err := newStagingArea(t.TempDir(), "inv-1")
	require.NoError(t, err)
	defer staging.Release()

	downloader.On("DownloadWithContext", mock.Anything, mock.Anything).
		Return(nil, awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil))

	staged, err := fetcher.Fetch(context.Background(), ObjectRef{Bucket: "reports", Key: "q1.pdf"}, staging)
	assert.Nil(t, staged)
	assert.True(t, errors.Is(err, ErrObjectNotFound))
}

func TestClassifyFetchError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no such key", awserr.New(s3.ErrCodeNoSuchKey, "missing", nil), ErrObjectNotFound},
		{"no such bucket", awserr.New(s3.ErrCodeNoSuchBucket, "missing", nil), ErrObjectNotFound},
		{"head not found", awserr.New("NotFound", "missing", nil), ErrObjectNotFound},
		{"http 404", awserr.NewRequestFailure(awserr.New("Unknown", "gone", nil), 404, "req-1"), ErrObjectNotFound},
		{"access denied", awserr.New("AccessDenied", "denied", nil), ErrFetch},
		{"http 500", awserr.NewRequestFailure(awserr.New("InternalError", "oops", nil), 500, "req-1"), ErrFetch},
		{"plain error", errors.New("connection reset"), ErrFetch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyFetchError(tt.err, "s3://reports/q1.pdf")
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.True(t, errors.Is(err, tt.err))
		})
	}
}
