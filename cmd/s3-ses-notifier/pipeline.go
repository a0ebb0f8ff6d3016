package main

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Stage is a pipeline state. A run moves through them strictly in order.
type Stage int

const (
	StageStart Stage = iota
	StageExtracted
	StageRecorded
	StageFetched
	StageComposed
	StageDispatched
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageExtracted:
		return "extracted"
	case StageRecorded:
		return "recorded"
	case StageFetched:
		return "fetched"
	case StageComposed:
		return "composed"
	case StageDispatched:
		return "dispatched"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// Pipeline processes one trigger event per call to Handle. It holds no state between runs.
type Pipeline struct {
	recorder    *AuditRecorder
	fetcher     *ObjectFetcher
	composer    EmailComposer
	dispatcher  *EmailDispatcher
	lookup      LookupFunc
	downloadDir string
	logger      *zap.Logger
}

func NewPipeline(recorder *AuditRecorder, fetcher *ObjectFetcher, dispatcher *EmailDispatcher, lookup LookupFunc, downloadDir string, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		recorder:    recorder,
		fetcher:     fetcher,
		dispatcher:  dispatcher,
		lookup:      lookup,
		downloadDir: downloadDir,
		logger:      logger,
	}
}

// Handle runs extract, record, fetch, compose and dispatch in that order. The first failure ends
// the run and is returned as a StageError; an audit record written before the failure stays.
func (p *Pipeline) Handle(ctx context.Context, invocationID string, payload []byte) error {

	start := time.Now()
	state := StageStart
	logger := p.logger.With(zap.String("invocation_id", invocationID))

	fail := func(err error) error {
		logger.Error("invocation failed", zap.Stringer("state", state), zap.Error(err))
		return &StageError{Stage: state, Err: err}
	}
	advance := func(next Stage) {
		state = next
		logger.Info("state reached", zap.Stringer("state", state), zap.Duration("elapsed", time.Since(start)))
	}

	// settings are checked before anything touches a store or service
	mailConfig, err := LoadMailConfiguration(p.lookup)
	if err != nil {
		return fail(err)
	}

	obj, err := extractEvent(payload)
	if err != nil {
		return fail(err)
	}
	advance(StageExtracted)
	logger = logger.With(zap.String("bucket", obj.Bucket), zap.String("key", obj.Key))

	// component log lines carry the invocation and object too
	recorder := p.recorder.withLogger(logger)
	fetcher := p.fetcher.withLogger(logger)
	dispatcher := p.dispatcher.withLogger(logger)

	if _, err = recorder.Record(ctx, obj); err != nil {
		return fail(err)
	}
	advance(StageRecorded)

	staging, err := newStagingArea(p.downloadDir, invocationID)
	if err != nil {
		return fail(newNotifierError(KindFetch, "cannot create staging area", err))
	}
	defer func() {
		if err := staging.Release(); err != nil {
			logger.Warn("staging area not removed", zap.String("dir", staging.dir), zap.Error(err))
		}
	}()

	staged, err := fetcher.Fetch(ctx, obj, staging)
	if err != nil {
		return fail(err)
	}
	advance(StageFetched)

	message, err := p.composer.Compose(*mailConfig, staged, attachmentName(obj.Key))
	if err != nil {
		return fail(err)
	}
	advance(StageComposed)

	receipt, err := dispatcher.Dispatch(ctx, message)
	if err != nil {
		return fail(err)
	}
	advance(StageDispatched)
	advance(StageDone)
	logger.Info("invocation complete", zap.Stringer("state", state), zap.String("message_id", receipt.MessageID),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

//
// end of file
//
