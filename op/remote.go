package op

import (
	"compress/bzip2"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/nickyhof/DuckDesk/core"
	"github.com/nickyhof/DuckDesk/db"
	"github.com/nickyhof/DuckDesk/ps"
)

// S3Config holds credentials for s3:// sources. Empty fields fall back to
// the default AWS configuration chain.
type S3Config struct {
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string // S3-compatible endpoint, path-style addressing
}

// RemoteOptions controls where ImportURL may read from.
type RemoteOptions struct {
	S3 S3Config
	// AllowLocal permits plain paths and file:// URLs. The server leaves it
	// off; the CLI turns it on.
	AllowLocal bool
	// AllowedHosts lists the hosts http(s):// sources may be fetched from,
	// redirects included, and the buckets s3:// sources may name. "*" allows
	// any host. An empty list disables remote sources.
	AllowedHosts []string
}

func (o RemoteOptions) allowsHost(host string) bool {
	for _, allowed := range o.AllowedHosts {
		if allowed == "*" || strings.EqualFold(allowed, host) {
			return true
		}
	}
	return false
}

func (o RemoteOptions) checkHost(location, host string) error {
	if len(o.AllowedHosts) == 0 {
		return core.Validation("remote sources are not allowed: %s", location)
	}
	if !o.allowsHost(host) {
		return core.Validation("host %q is not in the import allowlist", host)
	}
	return nil
}

type urlScheme string

const (
	schemeFile  urlScheme = "file"
	schemeS3    urlScheme = "s3"
	schemeHTTP  urlScheme = "http"
	schemeHTTPS urlScheme = "https"
	schemeLocal urlScheme = "local"
)

func detectScheme(location string) urlScheme {
	lower := strings.ToLower(location)
	switch {
	case strings.HasPrefix(lower, "s3://"):
		return schemeS3
	case strings.HasPrefix(lower, "https://"):
		return schemeHTTPS
	case strings.HasPrefix(lower, "http://"):
		return schemeHTTP
	case strings.HasPrefix(lower, "file://"):
		return schemeFile
	default:
		return schemeLocal
	}
}

// SourceName returns the file name a location refers to, without any query
// string or compression suffix.
func SourceName(location string) string {
	name := location
	if u, err := url.Parse(location); err == nil && u.Scheme != "" {
		name = u.Path
	}
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	for _, ext := range compressionExts {
		if strings.HasSuffix(strings.ToLower(name), ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

var compressionExts = []string{".gz", ".bz2", ".xz", ".zst"}

// OpenSource opens location for reading and decompresses it according to
// its suffix.
func OpenSource(ctx context.Context, location string, opts RemoteOptions) (io.ReadCloser, error) {
	var (
		raw io.ReadCloser
		err error
	)
	switch scheme := detectScheme(location); scheme {
	case schemeLocal, schemeFile:
		if !opts.AllowLocal {
			return nil, core.Validation("local sources are not allowed: %s", location)
		}
		raw, err = osOpen(strings.TrimPrefix(location, "file://"))
	case schemeHTTP, schemeHTTPS:
		u, parseErr := url.Parse(location)
		if parseErr != nil {
			return nil, core.Validation("invalid URL %q: %v", location, parseErr)
		}
		if err := opts.checkHost(location, u.Hostname()); err != nil {
			return nil, err
		}
		raw, err = openHTTPReader(ctx, location, opts)
	case schemeS3:
		bucket, _, parseErr := parseS3URL(location)
		if parseErr != nil {
			return nil, parseErr
		}
		if err := opts.checkHost(location, bucket); err != nil {
			return nil, err
		}
		raw, err = openS3Reader(ctx, location, opts.S3)
	default:
		return nil, core.Validation("unsupported URL scheme: %s", location)
	}
	if err != nil {
		return nil, err
	}

	return decompress(location, raw)
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error {
	return r.close()
}

func decompress(location string, raw io.ReadCloser) (io.ReadCloser, error) {
	name := location
	if u, err := url.Parse(location); err == nil && u.Scheme != "" {
		name = u.Path
	}
	name = strings.ToLower(name)

	switch {
	case strings.HasSuffix(name, ".gz"):
		gz, err := gzip.NewReader(raw)
		if err != nil {
			_ = raw.Close()
			return nil, err
		}
		return readCloser{Reader: gz, close: func() error {
			_ = gz.Close()
			return raw.Close()
		}}, nil
	case strings.HasSuffix(name, ".bz2"):
		return readCloser{Reader: bzip2.NewReader(raw), close: raw.Close}, nil
	case strings.HasSuffix(name, ".xz"):
		xzReader, err := xz.NewReader(raw)
		if err != nil {
			_ = raw.Close()
			return nil, err
		}
		return readCloser{Reader: xzReader, close: raw.Close}, nil
	case strings.HasSuffix(name, ".zst"):
		decoder, err := zstd.NewReader(raw)
		if err != nil {
			_ = raw.Close()
			return nil, err
		}
		return readCloser{Reader: decoder, close: func() error {
			decoder.Close()
			return raw.Close()
		}}, nil
	default:
		return raw, nil
	}
}

const maxRedirects = 10

func openHTTPReader(ctx context.Context, location string, opts RemoteOptions) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, core.Validation("invalid URL %q: %v", location, err)
	}

	client := &http.Client{
		Timeout: 5 * time.Minute,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return opts.checkHost(req.URL.String(), req.URL.Hostname())
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP request returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// parseS3URL splits s3://bucket/key.
func parseS3URL(location string) (bucket, key string, err error) {
	rest := location[len("s3://"):]
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", core.Validation("invalid S3 URL: %s", location)
	}
	return parts[0], parts[1], nil
}

func newS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		opts = append(opts, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

func openS3Reader(ctx context.Context, location string, cfg S3Config) (io.ReadCloser, error) {
	bucket, key, err := parseS3URL(location)
	if err != nil {
		return nil, err
	}

	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}

	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get S3 object: %w", err)
	}
	return resp.Body, nil
}

// osOpen is swapped in tests.
var osOpen = func(name string) (io.ReadCloser, error) {
	return os.Open(name)
}

// ImportURL fetches location and imports it like an uploaded CSV file.
func ImportURL(ctx context.Context, h *db.Handle, spool *ps.Spool, location, schema, table string, opts RemoteOptions) (ImportResult, error) {
	if strings.TrimSpace(location) == "" {
		return ImportResult{}, core.Validation("No URL provided")
	}
	filename := SourceName(location)
	if !IsCSV(filename) {
		return ImportResult{}, core.Validation("Only CSV files are supported")
	}

	src, err := OpenSource(ctx, location, opts)
	if err != nil {
		return ImportResult{}, core.Ingest(err)
	}
	defer src.Close()

	return ImportTable(ctx, h, spool, ImportRequest{
		Schema:   schema,
		Table:    table,
		Filename: filename,
		Source:   src,
	})
}
