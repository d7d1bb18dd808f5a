package awsapi

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// AccountResolver looks up the account of the active credentials.
type AccountResolver struct {
	sts func(ctx context.Context, region string) (STSAPI, error)
}

// NewAccountResolver resolves accounts with the provider's STS clients.
func NewAccountResolver(p *Provider) *AccountResolver {
	return &AccountResolver{sts: p.STS}
}

// NewAccountResolverWith resolves accounts with a fixed client.
func NewAccountResolverWith(client STSAPI) *AccountResolver {
	return &AccountResolver{sts: func(context.Context, string) (STSAPI, error) { return client, nil }}
}

// AccountID calls GetCallerIdentity in region.
func (r *AccountResolver) AccountID(ctx context.Context, region string) (string, error) {
	client, err := r.sts(ctx, region)
	if err != nil {
		return "", err
	}
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("%s - get caller identity: %w", logPrefix, err)
	}
	id := aws.ToString(out.Account)
	if id == "" {
		return "", fmt.Errorf("%s - caller identity has no account", logPrefix)
	}
	return id, nil
}
