package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"go.uber.org/zap"
)

// StagedObject is the local copy of a downloaded object
type StagedObject struct {
	Path string
	Size int64
}

// stagingArea is a directory private to one invocation. Release removes it and everything in it.
type stagingArea struct {
	dir string
}

func newStagingArea(baseDir string, invocationID string) (*stagingArea, error) {

	prefix := strings.NewReplacer("/", "_", string(os.PathSeparator), "_").Replace(invocationID)
	dir, err := os.MkdirTemp(baseDir, prefix+"-")
	if err != nil {
		return nil, err
	}
	return &stagingArea{dir: dir}, nil
}

func (s *stagingArea) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *stagingArea) Release() error {
	return os.RemoveAll(s.dir)
}

// ObjectFetcher downloads objects into a staging area
type ObjectFetcher struct {
	downloader s3manageriface.DownloaderAPI
	logger     *zap.Logger
}

func NewObjectFetcher(downloader s3manageriface.DownloaderAPI, logger *zap.Logger) *ObjectFetcher {
	return &ObjectFetcher{downloader: downloader, logger: logger}
}

func (f *ObjectFetcher) withLogger(logger *zap.Logger) *ObjectFetcher {
	c := *f
	c.logger = logger
	return &c
}

// Fetch downloads the named object into the staging area
func (f *ObjectFetcher) Fetch(ctx context.Context, obj ObjectRef, staging *stagingArea) (*StagedObject, error) {

	sourcename := objectLocator(obj.Bucket, obj.Key)
	file, err := os.Create(staging.path(attachmentName(obj.Key)))
	if err != nil {
		return nil, newNotifierError(KindFetch, fmt.Sprintf("cannot stage %s", sourcename), err)
	}
	defer file.Close()

	start := time.Now()
	f.logger.Info("downloading object", zap.String("source", sourcename), zap.String("staged", file.Name()))

	size, err := f.downloader.DownloadWithContext(ctx, file,
		&s3.GetObjectInput{
			Bucket: aws.String(obj.Bucket),
			Key:    aws.String(obj.Key),
		})
	if err != nil {
		return nil, classifyFetchError(err, sourcename)
	}

	duration := time.Since(start)
	f.logger.Info("download complete", zap.String("source", sourcename), zap.Int64("bytes", size),
		zap.String("seconds", fmt.Sprintf("%0.2f", duration.Seconds())))
	return &StagedObject{Path: file.Name(), Size: size}, nil
}

// classifyFetchError separates a missing object from any other download failure
func classifyFetchError(err error, sourcename string) error {

	var rf awserr.RequestFailure
	if errors.As(err, &rf) && rf.StatusCode() == http.StatusNotFound {
		return newNotifierError(KindObjectNotFound, sourcename, err)
	}

	var ae awserr.Error
	if errors.As(err, &ae) {
		switch ae.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return newNotifierError(KindObjectNotFound, sourcename, err)
		}
	}
	return newNotifierError(KindFetch, fmt.Sprintf("cannot download %s", sourcename), err)
}

// attachmentName is the final segment of the object key
func attachmentName(key string) string {
	name := path.Base(key)
	if name == "." || name == "/" || name == ".." {
		return "attachment"
	}
	return name
}

//
// end of file
//
