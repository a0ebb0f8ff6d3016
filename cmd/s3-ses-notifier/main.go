package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/uvalib/virgo4-sqs-sdk/awssqs"
	"go.uber.org/zap"
)

// set at build time
var version = "dev"

func Version() string {
	return version
}

var (
	cfg    *ServiceConfig
	logger *zap.Logger

	eventFile string
)

var rootCmd = &cobra.Command{
	Use:               "s3-ses-notifier",
	Short:             "Audit new S3 objects and email them as attachments",
	SilenceUsage:      true,
	PersistentPreRunE: initialize,
	RunE:              runLambda,
}

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Serve S3 notifications as a Lambda function (default)",
	RunE:  runLambda,
}

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Read S3 notifications from the IN_QUEUE SQS queue",
	RunE:  runPoll,
}

var invokeCmd = &cobra.Command{
	Use:   "invoke",
	Short: "Process a single S3 notification read from a file",
	RunE:  runInvoke,
}

func init() {
	invokeCmd.Flags().StringVarP(&eventFile, "event", "e", "", "S3 notification JSON file")
	_ = invokeCmd.MarkFlagRequired("event")

	rootCmd.AddCommand(lambdaCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(invokeCmd)
}

//
// main entry point
//
func main() {
	err := rootCmd.Execute()
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		os.Exit(1)
	}
}

func initialize(cmd *cobra.Command, args []string) error {

	loadDotEnv()

	// service configuration issues are fatal, mail configuration is checked per invocation
	c, err := LoadConfiguration(os.LookupEnv)
	if err != nil {
		return err
	}

	l, err := newLogger(c.LogLevel, c.LogFormat)
	if err != nil {
		return err
	}

	cfg, logger = c, l
	logger.Info(fmt.Sprintf("===> %s service starting up (version: %s) <===", os.Args[0], Version()))
	cfg.Log(logger)
	return nil
}

//
// build the pipeline and its AWS clients. The returned function releases anything that needs it.
//
func newPipeline(config ServiceConfig, logger *zap.Logger) (*Pipeline, func(), error) {

	sess, err := session.NewSession(&aws.Config{MaxRetries: aws.Int(config.AwsMaxRetries)})
	if err != nil {
		return nil, nil, err
	}

	closer := func() {}
	var store AuditStore
	switch config.AuditBackend {
	case auditBackendSqlite:
		s, err := newSqliteAuditStore(config.AuditSqlitePath, config.AuditTable)
		if err != nil {
			return nil, nil, err
		}
		store = s
		closer = func() {
			if err := s.Close(); err != nil {
				logger.Warn("audit database close failed", zap.Error(err))
			}
		}
	default:
		store = newDynamoAuditStore(dynamodb.New(sess), config.AuditTable)
	}

	recorder := NewAuditRecorder(store, nil, logger)
	fetcher := NewObjectFetcher(s3manager.NewDownloader(sess), logger)
	dispatcher := NewEmailDispatcher(ses.New(sess, aws.NewConfig().WithRegion(config.SesRegion)), logger)

	return NewPipeline(recorder, fetcher, dispatcher, os.LookupEnv, config.DownloadDir, logger), closer, nil
}

// lambdaHandler adapts the pipeline to the Lambda invocation contract
func lambdaHandler(handler InvocationHandler) func(ctx context.Context, payload json.RawMessage) error {
	return func(ctx context.Context, payload json.RawMessage) error {
		id := ""
		if lc, ok := lambdacontext.FromContext(ctx); ok {
			id = lc.AwsRequestID
		}
		if id == "" {
			id = uuid.NewString()
		}
		return handler.Handle(ctx, id, payload)
	}
}

func runLambda(cmd *cobra.Command, args []string) error {

	// lambda.Start never returns so the audit store stays open for the life of the process
	pipeline, _, err := newPipeline(*cfg, logger)
	if err != nil {
		return err
	}

	lambda.Start(lambdaHandler(pipeline))
	return nil
}

func runPoll(cmd *cobra.Command, args []string) error {

	if len(cfg.InQueueName) == 0 {
		return newNotifierError(KindConfiguration, "IN_QUEUE cannot be blank in poll mode", nil)
	}

	pipeline, closer, err := newPipeline(*cfg, logger)
	if err != nil {
		return err
	}
	defer closer()

	sqs, err := awssqs.NewAwsSqs(awssqs.AwsSqsConfig{})
	if err != nil {
		return err
	}

	inQueueHandle, err := sqs.QueueHandle(cfg.InQueueName)
	if err != nil {
		return err
	}

	receive := func(ctx context.Context) ([]awssqs.Message, error) {
		return getInboundNotifications(ctx, *cfg, sqs, inQueueHandle, logger)
	}
	finish := func(message awssqs.Message) error {
		return deleteInboundNotification(sqs, inQueueHandle, message, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return pollQueue(ctx, cfg.Workers, receive, finish, pipeline, logger)
}

func runInvoke(cmd *cobra.Command, args []string) error {

	payload, err := os.ReadFile(eventFile)
	if err != nil {
		return err
	}

	pipeline, closer, err := newPipeline(*cfg, logger)
	if err != nil {
		return err
	}
	defer closer()

	return pipeline.Handle(cmd.Context(), uuid.NewString(), payload)
}

//
// end of file
//
