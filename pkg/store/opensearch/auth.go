package opensearch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// awsConfig resolves the credentials used for SigV4: the static keys when configured,
// otherwise the default AWS chain (env, shared config, IMDS).
func awsConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" {
		return aws.Config{
			Region:      cfg.AWSRegion,
			Credentials: credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, cfg.AWSSessionToken),
		}, nil
	}
	loaded, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS default config: %w", err)
	}
	if loaded.Credentials == nil {
		return aws.Config{}, fmt.Errorf("failed to resolve AWS credentials provider")
	}
	return loaded, nil
}

// signingTransport signs a copy of every request with AWS SigV4.
type signingTransport struct {
	base    http.RoundTripper
	signer  *v4.Signer
	creds   aws.CredentialsProvider
	region  string
	service string
	now     func() time.Time
}

func newSigningTransport(ctx context.Context, base http.RoundTripper, cfg Config) (*signingTransport, error) {
	awsCfg, err := awsConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &signingTransport{
		base:    base,
		signer:  v4.NewSigner(),
		creds:   awsCfg.Credentials,
		region:  cfg.AWSRegion,
		service: cfg.AWSService,
		now:     time.Now,
	}, nil
}

func (t *signingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	signed := req.Clone(req.Context())
	payload, err := replayableBody(signed)
	if err != nil {
		return nil, err
	}
	creds, err := t.creds.Retrieve(signed.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve AWS credentials: %w", err)
	}
	sum := sha256.Sum256(payload)
	if err := t.signer.SignHTTP(signed.Context(), creds, signed, hex.EncodeToString(sum[:]), t.service, t.region, t.now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to sign request with AWS SigV4: %w", err)
	}
	return t.base.RoundTrip(signed)
}

// replayableBody reads the request payload and leaves a fresh body in place.
func replayableBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	var body io.ReadCloser
	if req.GetBody != nil {
		fresh, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		body = fresh
	} else {
		body = req.Body
	}
	data, err := io.ReadAll(body)
	_ = body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// headerTransport sets API key or basic authorization. An API key wins over a username.
type headerTransport struct {
	base     http.RoundTripper
	apiKey   string
	username string
	password string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	authed := req.Clone(req.Context())
	if t.apiKey != "" {
		authed.Header.Set("Authorization", "ApiKey "+t.apiKey)
	} else {
		authed.SetBasicAuth(t.username, t.password)
	}
	return t.base.RoundTrip(authed)
}

// authTransport wraps base with the authentication selected by cfg. SigV4 replaces the
// header based schemes.
func authTransport(ctx context.Context, base http.RoundTripper, cfg Config) (http.RoundTripper, error) {
	switch {
	case cfg.AWSAuthEnabled:
		return newSigningTransport(ctx, base, cfg)
	case cfg.APIKey != "" || strings.TrimSpace(cfg.Username) != "":
		return &headerTransport{base: base, apiKey: cfg.APIKey, username: cfg.Username, password: cfg.Password}, nil
	default:
		return base, nil
	}
}
