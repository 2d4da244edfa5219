// Package app wires the bootstrap handler to AWS clients from configuration.
package app

import (
	"fmt"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/redshiftdataapiservice"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/secretsmanager"

	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/assets"
	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/bootstrap"
	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/config"
	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/credentials"
	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/warehouse"
)

// Options adjust how the handler is assembled.
type Options struct {
	// LocalAssets reads the script from the local filesystem instead of S3.
	LocalAssets bool
	Logger      log.Interface
}

// NewSession builds an AWS session from the shared config chain, pinned to
// region when it is set.
func NewSession(region string) (*session.Session, error) {
	opts := session.Options{SharedConfigState: session.SharedConfigEnable}
	if region != "" {
		opts.Config = aws.Config{Region: aws.String(region)}
	}
	sess, err := session.NewSessionWithOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("creating aws session: %w", err)
	}
	return sess, nil
}

// NewExecutor returns the executor for the configured mode.
func NewExecutor(cfg *config.Config, sess *session.Session) (bootstrap.Executor, error) {
	switch cfg.Execution.Mode {
	case config.ModeDataAPI:
		return warehouse.NewDataAPIExecutor(redshiftdataapiservice.New(sess)), nil
	case config.ModeDirect:
		return warehouse.NewDirectExecutor(cfg.Direct), nil
	default:
		return nil, fmt.Errorf("unknown execution mode %q", cfg.Execution.Mode)
	}
}

// NewHandler assembles a bootstrap.Handler from cfg.
func NewHandler(cfg *config.Config, sess *session.Session, opts Options) (*bootstrap.Handler, error) {
	executor, err := NewExecutor(cfg, sess)
	if err != nil {
		return nil, err
	}

	var store bootstrap.AssetStore = assets.NewS3Store(s3.New(sess))
	if opts.LocalAssets {
		store = assets.DirStore{}
	}

	handlerOpts := []bootstrap.Option{bootstrap.WithPollPolicy(PollPolicy(cfg))}
	if opts.Logger != nil {
		handlerOpts = append(handlerOpts, bootstrap.WithLogger(opts.Logger))
	}

	return bootstrap.NewHandler(
		store,
		credentials.NewSecretsManagerResolver(secretsmanager.New(sess)),
		executor,
		handlerOpts...,
	), nil
}

// PollPolicy converts the execution settings.
func PollPolicy(cfg *config.Config) bootstrap.PollPolicy {
	return bootstrap.PollPolicy{
		Interval:       cfg.Execution.PollInterval,
		MaxInterval:    cfg.Execution.PollMaxInterval,
		Timeout:        cfg.Execution.Timeout,
		DeadlineMargin: cfg.Execution.DeadlineMargin,
	}
}
