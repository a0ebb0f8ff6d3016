package main

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
	"go.uber.org/zap"
)

// DispatchReceipt confirms the mail service accepted a message. It says nothing about delivery.
type DispatchReceipt struct {
	MessageID string
}

// EmailDispatcher submits composed messages to SES as raw email
type EmailDispatcher struct {
	svc    sesiface.SESAPI
	logger *zap.Logger
}

func NewEmailDispatcher(svc sesiface.SESAPI, logger *zap.Logger) *EmailDispatcher {
	return &EmailDispatcher{svc: svc, logger: logger}
}

func (d *EmailDispatcher) withLogger(logger *zap.Logger) *EmailDispatcher {
	c := *d
	c.logger = logger
	return &c
}

// Dispatch serializes the message and makes one send attempt
func (d *EmailDispatcher) Dispatch(ctx context.Context, message *EmailMessage) (*DispatchReceipt, error) {

	raw, err := message.Marshal()
	if err != nil {
		return nil, newNotifierError(KindDispatch, "cannot serialize message", err)
	}

	out, err := d.svc.SendRawEmailWithContext(ctx, &ses.SendRawEmailInput{
		RawMessage: &ses.RawMessage{Data: raw},
	})
	if err != nil {
		return nil, newNotifierError(KindDispatch, "SES rejected message", err)
	}

	receipt := &DispatchReceipt{MessageID: aws.StringValue(out.MessageId)}
	d.logger.Info("email submitted", zap.String("message_id", receipt.MessageID), zap.Int("bytes", len(raw)))
	return receipt, nil
}

//
// end of file
//
