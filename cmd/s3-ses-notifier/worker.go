package main

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/uvalib/virgo4-sqs-sdk/awssqs"
	"go.uber.org/zap"
)

// InvocationHandler runs the pipeline for one trigger payload
type InvocationHandler interface {
	Handle(ctx context.Context, invocationID string, payload []byte) error
}

// ReceiveFunc waits for the next batch of inbound notifications
type ReceiveFunc func(ctx context.Context) ([]awssqs.Message, error)

// FinishFunc removes a notification that needs no further delivery
type FinishFunc func(message awssqs.Message) error

//
// poll the inbound queue and hand each notification to a worker. Returns when the context is
// cancelled, once every notification already handed out has been processed.
//
func pollQueue(ctx context.Context, workers int, receive ReceiveFunc, finish FinishFunc, handler InvocationHandler, logger *zap.Logger) error {

	messages := make(chan awssqs.Message, workers)

	var wg sync.WaitGroup
	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			worker(ctx, id, handler, finish, messages, logger)
		}(w)
	}

	defer func() {
		close(messages)
		wg.Wait()
	}()

	for {
		inbound, err := receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("poller stopping")
				return nil
			}
			return err
		}

		for _, m := range inbound {
			select {
			case messages <- m:
			case <-ctx.Done():
				logger.Info("poller stopping")
				return nil
			}
		}
	}
}

func worker(ctx context.Context, id int, handler InvocationHandler, finish FinishFunc, messages <-chan awssqs.Message, logger *zap.Logger) {

	logger = logger.With(zap.Int("worker", id))
	count := uint(0)

	for message := range messages {

		count++
		if processNotification(ctx, handler, message, logger) {
			if err := finish(message); err != nil {
				logger.Error("cannot delete notification", zap.Error(err))
			}
		}

		if count%100 == 0 {
			logger.Info("worker progress", zap.Uint("processed", count))
		}
	}

	logger.Info("worker stopped", zap.Uint("processed", count))
}

//
// run one notification through the pipeline and report whether it is finished with. Failed
// notifications are left on the queue so the visibility timeout redelivers them; a malformed
// one never succeeds so it is finished with too.
//
func processNotification(ctx context.Context, handler InvocationHandler, message awssqs.Message, logger *zap.Logger) bool {

	err := handler.Handle(ctx, uuid.NewString(), []byte(message.Payload))
	if err == nil {
		return true
	}

	if errors.Is(err, ErrMalformedEvent) {
		logger.Warn("discarding malformed notification", zap.Error(err))
		return true
	}

	logger.Warn("notification left for redelivery", zap.String("kind", string(errorKind(err))))
	return false
}

//
// end of file
//
