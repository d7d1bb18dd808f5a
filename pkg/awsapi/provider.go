// Package awsapi builds region-scoped AWS service clients with the process-wide
// timeout and retry policy.
package awsapi

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/backup"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const logPrefix = "awsapi:provider"

// Settings is the transport policy shared by every client.
type Settings struct {
	DefaultRegion  string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MaxAttempts    int
}

// LoadConfig loads the default credential chain for region with the transport policy
// applied.
func LoadConfig(ctx context.Context, region string, s Settings) (aws.Config, error) {
	httpClient := awshttp.NewBuildableClient().
		WithTimeout(s.ReadTimeout).
		WithDialerOptions(func(d *net.Dialer) {
			if s.ConnectTimeout > 0 {
				d.Timeout = s.ConnectTimeout
			}
		})

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithHTTPClient(httpClient),
		config.WithRetryer(func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				if s.MaxAttempts > 0 {
					o.MaxAttempts = s.MaxAttempts
				}
			})
		}),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("%s - load AWS config for %s: %w", logPrefix, region, err)
	}
	return cfg, nil
}

// Provider hands out clients per region. Clients are created on first use and
// shared by concurrent invocations.
type Provider struct {
	settings Settings
	load     func(ctx context.Context, region string) (aws.Config, error)

	mu      sync.Mutex
	configs map[string]aws.Config
	clients map[string]any
}

// NewProvider creates a Provider that loads configuration with LoadConfig.
func NewProvider(s Settings) *Provider {
	p := &Provider{
		settings: s,
		configs:  map[string]aws.Config{},
		clients:  map[string]any{},
	}
	p.load = func(ctx context.Context, region string) (aws.Config, error) {
		return LoadConfig(ctx, region, s)
	}
	return p
}

// NewProviderFromConfig creates a Provider that derives every region's
// configuration from base.
func NewProviderFromConfig(base aws.Config, s Settings) *Provider {
	p := NewProvider(s)
	p.load = func(_ context.Context, region string) (aws.Config, error) {
		cfg := base.Copy()
		cfg.Region = region
		return cfg, nil
	}
	return p
}

// Config returns the configuration for region, the default region when empty.
func (p *Provider) Config(ctx context.Context, region string) (aws.Config, error) {
	if region == "" {
		region = p.settings.DefaultRegion
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if cfg, ok := p.configs[region]; ok {
		return cfg, nil
	}
	cfg, err := p.load(ctx, region)
	if err != nil {
		return aws.Config{}, err
	}
	slog.Debug(fmt.Sprintf("%s - loaded AWS config for %s", logPrefix, region))
	p.configs[region] = cfg
	return cfg, nil
}

func client[C any](ctx context.Context, p *Provider, service, region string, build func(aws.Config) C) (C, error) {
	var zero C
	cfg, err := p.Config(ctx, region)
	if err != nil {
		return zero, err
	}
	key := service + "/" + cfg.Region

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[key].(C); ok {
		return c, nil
	}
	c := build(cfg)
	p.clients[key] = c
	return c, nil
}

// Backup returns the AWS Backup client for region.
func (p *Provider) Backup(ctx context.Context, region string) (BackupAPI, error) {
	return client(ctx, p, "backup", region, func(cfg aws.Config) BackupAPI { return backup.NewFromConfig(cfg) })
}

// S3 returns the S3 client for region.
func (p *Provider) S3(ctx context.Context, region string) (S3API, error) {
	return client(ctx, p, "s3", region, func(cfg aws.Config) S3API { return s3.NewFromConfig(cfg) })
}

// RDS returns the RDS client for region.
func (p *Provider) RDS(ctx context.Context, region string) (RDSAPI, error) {
	return client(ctx, p, "rds", region, func(cfg aws.Config) RDSAPI { return rds.NewFromConfig(cfg) })
}

// EC2 returns the EC2 client for region.
func (p *Provider) EC2(ctx context.Context, region string) (EC2API, error) {
	return client(ctx, p, "ec2", region, func(cfg aws.Config) EC2API { return ec2.NewFromConfig(cfg) })
}

// STS returns the STS client for region.
func (p *Provider) STS(ctx context.Context, region string) (STSAPI, error) {
	return client(ctx, p, "sts", region, func(cfg aws.Config) STSAPI { return sts.NewFromConfig(cfg) })
}
