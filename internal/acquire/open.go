package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/FAU-CDI/harvester/pkg/htmlx"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
)

// Resource is an opened remote or local document.
type Resource struct {
	io.ReadCloser

	Name        string // name used to detect the format, without any compression suffix
	ContentType string // may be empty
	Size        int64  // <= 0 if unknown
}

// S3API is the subset of the s3 client used to fetch dumps.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var (
	errNoS3Client    = errors.New("no s3 client configured")
	errS3Location    = errors.New("s3 location needs a bucket and a key")
	errUnknownScheme = errors.New("unsupported url scheme")
	errHTTPStatus    = errors.New("unexpected http status")
	errEmptyLocation = errors.New("empty location")
)

// maxErrorBodyBytes is the maximum number of bytes read from an error response
const maxErrorBodyBytes = 64 * 1024

// open opens the given dump location.
func (acquirer *Acquirer) open(ctx context.Context, location string) (*Resource, error) {
	if location == "" {
		return nil, errEmptyLocation
	}

	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("failed to parse location: %w", err)
	}

	var resource *Resource
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		resource, err = acquirer.openHTTP(ctx, location)
	case "s3":
		resource, err = acquirer.openS3(ctx, u)
	case "file":
		resource, err = openFile(u.Path)
	case "":
		resource, err = openFile(location)
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownScheme, u.Scheme)
	}
	if err != nil {
		return nil, err
	}

	return decompress(resource)
}

func (acquirer *Acquirer) openHTTP(ctx context.Context, location string) (*Resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", dumpAccept)
	acquirer.setUserAgent(req)

	res, err := acquirer.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dump: %w", err)
	}
	if err := checkResponse(res); err != nil {
		return nil, err
	}

	return &Resource{
		ReadCloser:  res.Body,
		Name:        res.Request.URL.Path,
		ContentType: res.Header.Get("Content-Type"),
		Size:        res.ContentLength,
	}, nil
}

func (acquirer *Acquirer) openS3(ctx context.Context, u *url.URL) (*Resource, error) {
	if acquirer.S3 == nil {
		return nil, errNoS3Client
	}

	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("%w: %q", errS3Location, u.String())
	}

	out, err := acquirer.S3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from s3: %w", err)
	}

	return &Resource{
		ReadCloser:  out.Body,
		Name:        key,
		ContentType: aws.ToString(out.ContentType),
		Size:        aws.ToInt64(out.ContentLength),
	}, nil
}

func openFile(name string) (*Resource, error) {
	file, err := os.Open(name) // #nosec G304 -- explicitly configured dump
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	var size int64
	if info, err := file.Stat(); err == nil {
		size = info.Size()
	}

	return &Resource{
		ReadCloser: file,
		Name:       name,
		Size:       size,
	}, nil
}

// gzipCloser closes both the gzip reader and the underlying resource
type gzipCloser struct {
	*gzip.Reader
	underlying io.Closer
}

func (gc gzipCloser) Close() error {
	return errors.Join(gc.Reader.Close(), gc.underlying.Close())
}

// decompress transparently decompresses gzip-compressed resources.
func decompress(resource *Resource) (*Resource, error) {
	hasExt := strings.ToLower(path.Ext(resource.Name)) == ".gz"
	if !hasExt && !strings.Contains(resource.ContentType, "gzip") {
		return resource, nil
	}

	reader, err := gzip.NewReader(resource.ReadCloser)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to open gzip stream: %w", err), resource.Close())
	}

	name := resource.Name
	if hasExt {
		name = name[:len(name)-len(".gz")]
	}
	contentType := resource.ContentType
	if strings.Contains(contentType, "gzip") {
		contentType = ""
	}

	return &Resource{
		ReadCloser:  gzipCloser{Reader: reader, underlying: resource.ReadCloser},
		Name:        name,
		ContentType: contentType,
		Size:        -1,
	}, nil
}

// checkResponse checks that res has a successful status code.
// If not, the body is closed and an error describing the response is returned.
func checkResponse(res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodyBytes))
	message := strings.TrimSpace(string(body))
	if strings.Contains(res.Header.Get("Content-Type"), "html") {
		if text, err := htmlx.Text(message); err == nil {
			message = text
		}
	}

	if message == "" {
		return fmt.Errorf("%w: %s", errHTTPStatus, res.Status)
	}
	return fmt.Errorf("%w: %s: %s", errHTTPStatus, res.Status, message)
}
