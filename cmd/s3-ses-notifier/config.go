package main

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// existing audit table
const defaultAuditTable = "S3_objects_sent_via_SES"

// audit backends
const (
	auditBackendDynamo = "dynamodb"
	auditBackendSqlite = "sqlite"
)

// longest wait an SQS receive allows
const maxPollTimeOut = 20

// LookupFunc finds a configuration value by name, os.LookupEnv in production
type LookupFunc func(key string) (string, bool)

// ServiceConfig defines all of the service configuration parameters
type ServiceConfig struct {
	AuditTable      string
	AuditBackend    string
	AuditSqlitePath string
	SesRegion       string
	DownloadDir     string
	AwsMaxRetries   int
	InQueueName     string
	PollTimeOut     int64
	Workers         int
	LogLevel        string
	LogFormat       string
}

// MailConfig holds the settings every invocation needs to build its email. None of them
// have defaults; they are read at the start of each invocation.
type MailConfig struct {
	Subject  string `env:"subject" validate:"required"`
	From     string `env:"from" validate:"required"`
	To       string `env:"to" validate:"required"`
	BodyText string `env:"bodytext" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report failures using the environment key rather than the go field name
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// loadDotEnv pulls a local .env file into the environment if there is one
func loadDotEnv() {
	_ = godotenv.Load()
}

// LoadConfiguration will load the service configuration from the environment
func LoadConfiguration(lookup LookupFunc) (*ServiceConfig, error) {

	var cfg ServiceConfig
	var err error

	cfg.AuditTable = envString(lookup, "AUDIT_TABLE", defaultAuditTable)
	cfg.AuditBackend = strings.ToLower(envString(lookup, "AUDIT_BACKEND", auditBackendDynamo))
	cfg.AuditSqlitePath = envString(lookup, "AUDIT_SQLITE_PATH", "audit.db")
	cfg.SesRegion = envString(lookup, "SES_REGION", "us-east-1")
	cfg.DownloadDir = envString(lookup, "DOWNLOAD_DIR", os.TempDir())
	cfg.InQueueName = envString(lookup, "IN_QUEUE", "")
	cfg.LogLevel = envString(lookup, "LOG_LEVEL", "info")
	cfg.LogFormat = envString(lookup, "LOG_FORMAT", "json")

	if cfg.AwsMaxRetries, err = envInt(lookup, "AWS_MAX_RETRIES", 0); err != nil {
		return nil, err
	}
	if cfg.Workers, err = envInt(lookup, "WORKERS", 1); err != nil {
		return nil, err
	}
	timeout, err := envInt(lookup, "POLL_TIMEOUT", 20)
	if err != nil {
		return nil, err
	}
	cfg.PollTimeOut = int64(timeout)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the service level settings
func (c *ServiceConfig) Validate() error {

	if len(c.AuditTable) == 0 {
		return newNotifierError(KindConfiguration, "AUDIT_TABLE cannot be blank", nil)
	}

	switch c.AuditBackend {
	case auditBackendDynamo:
	case auditBackendSqlite:
		if len(c.AuditSqlitePath) == 0 {
			return newNotifierError(KindConfiguration, "AUDIT_SQLITE_PATH cannot be blank", nil)
		}
	default:
		return newNotifierError(KindConfiguration, fmt.Sprintf("unsupported AUDIT_BACKEND %q", c.AuditBackend), nil)
	}

	if c.AwsMaxRetries < 0 {
		return newNotifierError(KindConfiguration, "AWS_MAX_RETRIES cannot be negative", nil)
	}
	if c.Workers < 1 {
		return newNotifierError(KindConfiguration, "WORKERS must be at least 1", nil)
	}
	// SQS long polling accepts 0 to 20 seconds
	if c.PollTimeOut < 0 || c.PollTimeOut > maxPollTimeOut {
		return newNotifierError(KindConfiguration, fmt.Sprintf("POLL_TIMEOUT must be between 0 and %d", maxPollTimeOut), nil)
	}
	return nil
}

// Log writes the configuration to the log
func (c *ServiceConfig) Log(logger *zap.Logger) {
	logger.Info("[CONFIG] AuditTable           = [" + c.AuditTable + "]")
	logger.Info("[CONFIG] AuditBackend         = [" + c.AuditBackend + "]")
	if c.AuditBackend == auditBackendSqlite {
		logger.Info("[CONFIG] AuditSqlitePath      = [" + c.AuditSqlitePath + "]")
	}
	logger.Info("[CONFIG] SesRegion            = [" + c.SesRegion + "]")
	logger.Info("[CONFIG] DownloadDir          = [" + c.DownloadDir + "]")
	logger.Info(fmt.Sprintf("[CONFIG] AwsMaxRetries        = [%d]", c.AwsMaxRetries))
	if c.InQueueName != "" {
		logger.Info("[CONFIG] InQueueName          = [" + c.InQueueName + "]")
		logger.Info(fmt.Sprintf("[CONFIG] PollTimeOut          = [%d]", c.PollTimeOut))
		logger.Info(fmt.Sprintf("[CONFIG] Workers              = [%d]", c.Workers))
	}
}

// LoadMailConfiguration reads and validates the per-invocation mail settings. Every missing
// key is reported in a single ConfigurationError.
func LoadMailConfiguration(lookup LookupFunc) (*MailConfig, error) {

	cfg := MailConfig{}
	cfg.Subject, _ = lookup("subject")
	cfg.From, _ = lookup("from")
	cfg.To, _ = lookup("to")
	cfg.BodyText, _ = lookup("bodytext")

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			missing := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				missing = append(missing, fe.Field())
			}
			sort.Strings(missing)
			return nil, newNotifierError(KindConfiguration,
				fmt.Sprintf("missing required setting(s): %s", strings.Join(missing, ", ")), nil)
		}
		return nil, newNotifierError(KindConfiguration, "mail configuration is invalid", err)
	}

	return &cfg, nil
}

func envString(lookup LookupFunc, key string, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(lookup LookupFunc, key string, def int) (int, error) {
	v, ok := lookup(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, newNotifierError(KindConfiguration, fmt.Sprintf("%s is not a number (%s)", key, v), err)
	}
	return n, nil
}

//
// end of file
//
