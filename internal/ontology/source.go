package ontology

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appConfig "github.com/RGU-Computing/clood/internal/config"
)

// Fetcher opens one ontology source.
type Fetcher interface {
	Open(ctx context.Context, u *url.URL) (io.ReadCloser, error)
}

// SourceLoader dispatches source URIs to a fetcher by scheme. Paths without a
// scheme are read from the local filesystem.
type SourceLoader struct {
	mu       sync.RWMutex
	fetchers map[string]Fetcher
}

func NewSourceLoader(cfg appConfig.OntologyConfig) *SourceLoader {
	timeout := time.Duration(cfg.FetchTimeout) * time.Second
	if timeout <= 0 {
		timeout = time.Minute
	}
	web := &httpFetcher{client: &http.Client{Timeout: timeout}}
	l := &SourceLoader{fetchers: map[string]Fetcher{}}
	l.Register("http", web)
	l.Register("https", web)
	l.Register("file", fileFetcher{})
	l.Register("s3", &s3Fetcher{cfg: cfg.S3})
	return l
}

func (l *SourceLoader) Register(scheme string, f Fetcher) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fetchers[strings.ToLower(scheme)] = f
}

func (l *SourceLoader) Open(ctx context.Context, source string) (io.ReadCloser, error) {
	u, err := url.Parse(strings.TrimSpace(source))
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		return os.Open(source)
	}
	l.mu.RLock()
	f := l.fetchers[strings.ToLower(u.Scheme)]
	l.mu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("unsupported ontology source scheme: %s", u.Scheme)
	}
	return f.Open(ctx, u)
}

type httpFetcher struct {
	client *http.Client
}

func (h *httpFetcher) Open(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/rdf+xml, text/turtle, application/n-triples;q=0.9, */*;q=0.5")
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: status %d", u.String(), resp.StatusCode)
	}
	return resp.Body, nil
}

type fileFetcher struct{}

func (fileFetcher) Open(_ context.Context, u *url.URL) (io.ReadCloser, error) {
	return os.Open(u.Path)
}

// s3Fetcher reads s3://bucket/key objects. The client is created on first use.
type s3Fetcher struct {
	cfg appConfig.S3Config

	once   sync.Once
	client *s3.Client
	err    error
}

func (f *s3Fetcher) init(ctx context.Context) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if f.cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(f.cfg.Region))
	}
	if f.cfg.SecretID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(f.cfg.SecretID, f.cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		f.err = fmt.Errorf("load aws config: %w", err)
		return
	}
	f.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if f.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(f.cfg.Endpoint)
		}
		o.UsePathStyle = f.cfg.PathStyle
	})
}

func (f *s3Fetcher) Open(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	f.once.Do(func() { f.init(ctx) })
	if f.err != nil {
		return nil, f.err
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return nil, fmt.Errorf("s3 source must look like s3://bucket/key: %s", u.String())
	}
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3 object %s: %w", u.String(), err)
	}
	return out.Body, nil
}
