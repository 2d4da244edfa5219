// Package credentials resolves the warehouse admin login from Secrets Manager.
package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
	"github.com/tidwall/gjson"

	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/bootstrap"
)

var _ bootstrap.CredentialResolver = (*SecretsManagerResolver)(nil)

// SecretsManagerResolver reads secrets shaped like the ones CDK generates for
// the namespace admin: {"username": "...", "password": "..."}.
type SecretsManagerResolver struct {
	client secretsmanageriface.SecretsManagerAPI
}

// NewSecretsManagerResolver returns a resolver backed by client.
func NewSecretsManagerResolver(client secretsmanageriface.SecretsManagerAPI) *SecretsManagerResolver {
	return &SecretsManagerResolver{client: client}
}

// Resolve fetches the current version of secretRef (name or ARN).
func (r *SecretsManagerResolver) Resolve(ctx context.Context, secretRef string) (bootstrap.Credential, error) {
	out, err := r.client.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretRef),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == secretsmanager.ErrCodeResourceNotFoundException {
			return bootstrap.Credential{}, fmt.Errorf("get secret %s: %w: %v", secretRef, bootstrap.ErrNotFound, err)
		}
		return bootstrap.Credential{}, fmt.Errorf("get secret %s: %w", secretRef, err)
	}

	if out.SecretString == nil {
		return bootstrap.Credential{}, fmt.Errorf("secret %s has no string value: %w", secretRef, bootstrap.ErrMalformed)
	}

	cred, err := Parse(aws.StringValue(out.SecretString))
	if err != nil {
		return bootstrap.Credential{}, fmt.Errorf("secret %s: %w", secretRef, err)
	}

	cred.SecretARN = aws.StringValue(out.ARN)
	if cred.SecretARN == "" {
		cred.SecretARN = secretRef
	}
	return cred, nil
}

// Parse extracts username and password from a secret string.
func Parse(secret string) (bootstrap.Credential, error) {
	if !gjson.Valid(secret) {
		return bootstrap.Credential{}, fmt.Errorf("not a JSON document: %w", bootstrap.ErrMalformed)
	}

	fields := gjson.GetMany(secret, "username", "password")
	username, password := fields[0].String(), fields[1].String()
	switch {
	case username == "":
		return bootstrap.Credential{}, fmt.Errorf("username is empty: %w", bootstrap.ErrMalformed)
	case password == "":
		return bootstrap.Credential{}, fmt.Errorf("password is empty: %w", bootstrap.ErrMalformed)
	}

	return bootstrap.Credential{Username: username, Password: password}, nil
}
