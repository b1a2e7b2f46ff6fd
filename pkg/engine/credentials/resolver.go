// Package credentials resolves short-lived scan credentials from a stored
// account record, assuming the tenant role where one is configured.
package credentials

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/evo-uds/cloudsweep/pkg/version"
)

// Account is the stored credential record for one scanned account.
type Account struct {
	ID         string
	RoleARN    string // assumed when set; ambient credentials otherwise
	ExternalID string
	Region     string // home region for the STS call
}

// Resolver turns stored account records into short-lived credentials.
type Resolver struct {
	cfg aws.Config
	sts *sts.Client
}

// NewResolver loads the ambient SDK configuration. AWS_ENDPOINT_URL
// reroutes STS for tests.
func NewResolver(ctx context.Context, region string) (*Resolver, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(endpoint))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	// Tag SDK calls so backend audit logs can attribute them.
	cfg.APIOptions = append(cfg.APIOptions, func(stack *middleware.Stack) error {
		return stack.Build.Add(middleware.BuildMiddlewareFunc("CloudsweepUserAgent", func(ctx context.Context, input middleware.BuildInput, next middleware.BuildHandler) (
			middleware.BuildOutput, middleware.Metadata, error,
		) {
			if req, ok := input.Request.(*smithyhttp.Request); ok {
				ua := req.Header.Get("User-Agent")
				req.Header.Set("User-Agent", fmt.Sprintf("%s/%s %s", version.AppName, version.Current, ua))
			}
			return next.HandleBuild(ctx, input)
		}), middleware.After)
	})

	return &Resolver{cfg: cfg, sts: sts.NewFromConfig(cfg)}, nil
}

// Config exposes the ambient SDK configuration for collaborators that use
// SDK clients directly (pricing hydration, S3 store).
func (r *Resolver) Config() aws.Config { return r.cfg }

// Resolve returns a credentials provider scoped to the account. When the
// record names a role it is assumed for one hour; otherwise the ambient
// chain is returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, acct Account) (aws.CredentialsProvider, error) {
	if acct.RoleARN == "" {
		return r.cfg.Credentials, nil
	}

	input := &sts.AssumeRoleInput{
		RoleArn:         aws.String(acct.RoleARN),
		RoleSessionName: aws.String(fmt.Sprintf("cloudsweep-scan-%s", acct.ID)),
		DurationSeconds: aws.Int32(3600),
	}
	if acct.ExternalID != "" {
		input.ExternalId = aws.String(acct.ExternalID)
	}

	out, err := r.sts.AssumeRole(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("assume role %s: %w", acct.RoleARN, err)
	}
	c := out.Credentials

	static := awscreds.NewStaticCredentialsProvider(
		aws.ToString(c.AccessKeyId),
		aws.ToString(c.SecretAccessKey),
		aws.ToString(c.SessionToken),
	)
	return aws.NewCredentialsCache(static), nil
}

// VerifyIdentity validates the session and returns the canonical account ID.
func (r *Resolver) VerifyIdentity(ctx context.Context) (string, error) {
	out, err := r.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to get caller identity: %w", err)
	}
	return aws.ToString(out.Account), nil
}

// Expiry reports when assumed credentials lapse, for pre-flight deadline checks.
func Expiry(ctx context.Context, p aws.CredentialsProvider) (time.Time, bool) {
	c, err := p.Retrieve(ctx)
	if err != nil || !c.CanExpire {
		return time.Time{}, false
	}
	return c.Expires, true
}
