package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/haowjy/meridian-claude-go"
)

// DefaultProfile is the empty profile name, meaning the default AWS credential chain.
const DefaultProfile = ""

// Credentials are AWS credentials used to sign Bedrock requests.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// Expires is when temporary credentials lapse; zero means they do not
	Expires time.Time
}

func (c Credentials) aws() aws.Credentials {
	return aws.Credentials{
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
		Source:          "meridian",
		CanExpire:       !c.Expires.IsZero(),
		Expires:         c.Expires,
	}
}

// CredentialProvider looks up AWS credentials by profile name.
// Implementations return an error wrapping llmprovider.ErrProfileNotFound
// when a named profile does not exist.
type CredentialProvider interface {
	Retrieve(ctx context.Context, profile string) (Credentials, error)
}

// AWSCredentialProvider resolves profiles from the shared AWS config and
// credentials files, environment, and instance metadata.
type AWSCredentialProvider struct {
	// Region is passed to the config loader (optional)
	Region string
}

// Retrieve loads credentials for profile. DefaultProfile uses the default chain.
func (p AWSCredentialProvider) Retrieve(ctx context.Context, profile string) (Credentials, error) {
	var opts []func(*config.LoadOptions) error
	if profile != DefaultProfile {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	if p.Region != "" {
		opts = append(opts, config.WithRegion(p.Region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		var notExist config.SharedConfigProfileNotExistError
		if errors.As(err, &notExist) {
			return Credentials{}, fmt.Errorf("%w: %s: %w", llmprovider.ErrProfileNotFound, profile, err)
		}
		return Credentials{}, fmt.Errorf("load aws config: %w", err)
	}

	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return Credentials{}, fmt.Errorf("retrieve aws credentials: %w", err)
	}

	out := Credentials{
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
		SessionToken:    creds.SessionToken,
	}
	if creds.CanExpire {
		out.Expires = creds.Expires
	}
	return out, nil
}

// resolveCredentials tries the named profile, then the default profile if the
// named one does not exist.
func resolveCredentials(ctx context.Context, provider CredentialProvider, profile string, logger *slog.Logger) (Credentials, error) {
	creds, err := provider.Retrieve(ctx, profile)
	if err == nil {
		return creds, nil
	}

	if profile == DefaultProfile || !errors.Is(err, llmprovider.ErrProfileNotFound) {
		return Credentials{}, &llmprovider.CredentialResolutionError{Profile: profile, NamedErr: err}
	}

	logger.Warn("aws profile not found, falling back to default profile",
		"profile", profile,
		"error", err)

	creds, defaultErr := provider.Retrieve(ctx, DefaultProfile)
	if defaultErr != nil {
		return Credentials{}, &llmprovider.CredentialResolutionError{
			Profile:    profile,
			NamedErr:   err,
			DefaultErr: defaultErr,
		}
	}

	return creds, nil
}

// credentialSource hands initial to the request signer first and calls
// resolve again whenever the cached credentials have expired.
func credentialSource(initial Credentials, resolve func(ctx context.Context) (Credentials, error)) aws.CredentialsProvider {
	var mu sync.Mutex
	pending := &initial

	return aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		mu.Lock()
		creds := pending
		pending = nil
		mu.Unlock()

		if creds == nil {
			fresh, err := resolve(ctx)
			if err != nil {
				return aws.Credentials{}, err
			}
			creds = &fresh
		}
		return creds.aws(), nil
	}))
}
