package main

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/uvalib/virgo4-sqs-sdk/awssqs"
	"go.uber.org/zap"
)

//
// turn a trigger payload into the bucket and key of the new object. Only the first record is
// considered; S3 sends one record per notification.
//
func extractEvent(payload []byte) (ObjectRef, error) {

	events := Events{}
	if err := json.Unmarshal(payload, &events); err != nil {
		return ObjectRef{}, newNotifierError(KindMalformedEvent, "payload is not an S3 notification", err)
	}

	if len(events.Records) == 0 {
		return ObjectRef{}, newNotifierError(KindMalformedEvent, "notification has no records", nil)
	}

	rec := events.Records[0].S3
	if len(rec.Bucket.Name) == 0 {
		return ObjectRef{}, newNotifierError(KindMalformedEvent, "record has no bucket name", nil)
	}
	if len(rec.Object.Key) == 0 {
		return ObjectRef{}, newNotifierError(KindMalformedEvent, "record has no object key", nil)
	}

	// keys arrive form encoded ("+" for space)
	key, err := url.QueryUnescape(rec.Object.Key)
	if err != nil {
		return ObjectRef{}, newNotifierError(KindMalformedEvent, "object key cannot be decoded", err)
	}

	return ObjectRef{Bucket: rec.Bucket.Name, Key: key}, nil
}

//
// wait for the next batch of inbound notifications. Returns an empty list when the poll times out.
//
func getInboundNotifications(ctx context.Context, config ServiceConfig, aws awssqs.AWS_SQS, inQueueHandle awssqs.QueueHandle, logger *zap.Logger) ([]awssqs.Message, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	messages, err := aws.BatchMessageGet(inQueueHandle, 1, time.Duration(config.PollTimeOut)*time.Second)
	if err != nil {
		return nil, err
	}

	if len(messages) == 0 {
		logger.Debug("no notifications...")
	} else {
		logger.Info("received new notification(s)", zap.Int("count", len(messages)))
	}
	return messages, nil
}

//
// remove a processed notification from the inbound queue
//
func deleteInboundNotification(aws awssqs.AWS_SQS, inQueueHandle awssqs.QueueHandle, message awssqs.Message, logger *zap.Logger) error {

	delMessages := []awssqs.Message{message}
	opStatus, err := aws.BatchMessageDelete(inQueueHandle, delMessages)

	// check the operation results
	for ix, op := range opStatus {
		if op == false {
			logger.Error("message failed to delete", zap.Int("index", ix))
		}
	}
	return err
}

//
// end of file
//
