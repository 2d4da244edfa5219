// Package warehouse submits schema batches to Redshift Serverless, either
// through the Redshift Data API or over a direct Postgres-protocol connection.
package warehouse

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/redshiftdataapiservice"
	"github.com/aws/aws-sdk-go/service/redshiftdataapiservice/redshiftdataapiserviceiface"

	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/bootstrap"
)

// MaxBatchStatements is the Data API limit on Sqls per BatchExecuteStatement.
const MaxBatchStatements = 40

var _ bootstrap.Executor = (*DataAPIExecutor)(nil)

// DataAPIExecutor runs batches with BatchExecuteStatement, authenticating with
// the admin secret ARN.
type DataAPIExecutor struct {
	client redshiftdataapiserviceiface.RedshiftDataAPIServiceAPI
}

// NewDataAPIExecutor returns an executor backed by client.
func NewDataAPIExecutor(client redshiftdataapiserviceiface.RedshiftDataAPIServiceAPI) *DataAPIExecutor {
	return &DataAPIExecutor{client: client}
}

// Submit starts the batch and returns the statement id.
func (e *DataAPIExecutor) Submit(ctx context.Context, batch bootstrap.Batch) (string, error) {
	if n := len(batch.Statements); n == 0 || n > MaxBatchStatements {
		return "", fmt.Errorf("batch has %d statements, want 1 to %d", n, MaxBatchStatements)
	}

	in := &redshiftdataapiservice.BatchExecuteStatementInput{
		WorkgroupName: aws.String(batch.WorkgroupName),
		Database:      aws.String(batch.DatabaseName),
		SecretArn:     aws.String(batch.Credential.SecretARN),
		Sqls:          aws.StringSlice(batch.Statements),
	}
	if batch.ClientToken != "" {
		in.ClientToken = aws.String(batch.ClientToken)
	}
	if batch.StatementName != "" {
		in.StatementName = aws.String(batch.StatementName)
	}

	out, err := e.client.BatchExecuteStatementWithContext(ctx, in)
	if err != nil {
		return "", fmt.Errorf("batch execute statement: %w", err)
	}
	return aws.StringValue(out.Id), nil
}

// Describe reports the batch status and, for failed batches, the error
// Redshift returned.
func (e *DataAPIExecutor) Describe(ctx context.Context, id string) (bootstrap.Execution, error) {
	out, err := e.client.DescribeStatementWithContext(ctx, &redshiftdataapiservice.DescribeStatementInput{
		Id: aws.String(id),
	})
	if err != nil {
		return bootstrap.Execution{}, fmt.Errorf("describe statement %s: %w", id, err)
	}

	exec := bootstrap.Execution{
		ID:    id,
		State: bootstrap.ExecutionState(aws.StringValue(out.Status)),
		Error: aws.StringValue(out.Error),
	}
	// A failed batch reports the offending sub-statement separately.
	if exec.State == bootstrap.StateFailed {
		for _, sub := range out.SubStatements {
			if aws.StringValue(sub.Status) == redshiftdataapiservice.StatementStatusStringFailed && sub.Error != nil {
				exec.Error = fmt.Sprintf("%s (statement: %s)", aws.StringValue(sub.Error), aws.StringValue(sub.QueryString))
				break
			}
		}
	}
	return exec, nil
}

// Cancel asks Redshift to stop the batch.
func (e *DataAPIExecutor) Cancel(ctx context.Context, id string) error {
	_, err := e.client.CancelStatementWithContext(ctx, &redshiftdataapiservice.CancelStatementInput{
		Id: aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("cancel statement %s: %w", id, err)
	}
	return nil
}
