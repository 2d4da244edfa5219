// Command redshift_schema_lambda is the onEvent handler of the
// Custom::RedshiftSchema provider. It applies the schema script on Create and
// Update and leaves the schema alone on Delete.
package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/apex/log"
	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/app"
	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/bootstrap"
	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/config"
	applog "github.com/kiquetal/ultimate-aws-data-engineering-book/internal/log"
)

// runner is the part of bootstrap.Handler the function needs.
type runner interface {
	Handle(ctx context.Context, req bootstrap.Request) bootstrap.Result
}

// response is the provider framework onEvent result.
type response struct {
	PhysicalResourceID string            `json:"PhysicalResourceId"`
	Data               map[string]string `json:"Data,omitempty"`
}

type function struct {
	handler  runner
	defaults config.RequestDefaults
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.WithError(err).Fatal("loading config")
	}
	applog.InitLogger(cfg.Log.Level, cfg.Log.Format)

	sess, err := app.NewSession(cfg.Region)
	if err != nil {
		log.WithError(err).Fatal("creating aws session")
	}

	h, err := app.NewHandler(cfg, sess, app.Options{})
	if err != nil {
		log.WithError(err).Fatal("building handler")
	}

	fn := &function{handler: h, defaults: cfg.Defaults}
	lambda.Start(fn.onEvent)
}

// onEvent returns an error for every failed invocation; the provider
// framework turns it into a FAILED response with the error text as reason.
func (f *function) onEvent(ctx context.Context, event cfn.Event) (response, error) {
	entry := log.WithFields(log.Fields{
		"request_type": string(event.RequestType),
		"logical_id":   event.LogicalResourceID,
	})
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		entry = entry.WithField("aws_request_id", lc.AwsRequestID)
	}
	entry.Info("received lifecycle event")

	req, err := bootstrap.RequestFromEvent(event)
	if err != nil {
		entry.WithError(err).Error("rejecting lifecycle event")
		return response{}, err
	}
	req = req.WithDefaults(f.defaults)

	res := f.handler.Handle(ctx, req)
	if !res.Succeeded() {
		return response{}, res.Err()
	}

	data := map[string]string{"Status": string(res.Status)}
	if res.ExecutionID != "" {
		data["ExecutionId"] = res.ExecutionID
		data["Statements"] = strconv.Itoa(res.Statements)
	}
	return response{PhysicalResourceID: physicalID(req), Data: data}, nil
}

// physicalID keeps the id CloudFormation already knows, so updates never
// trigger a replacement.
func physicalID(req bootstrap.Request) string {
	if req.PhysicalResourceID != "" {
		return req.PhysicalResourceID
	}
	return fmt.Sprintf("redshift-schema/%s/%s", req.WorkgroupName, req.DatabaseName)
}
