// Package s3 provides an S3-compatible Source for rangefile.
//
// This adapter supports AWS S3, MinIO, LocalStack, Cloudflare R2,
// and other S3-compatible object stores.
//
// # Behavior
//
//   - Construction: HeadObject resolves the object size and ETag.
//     A missing ContentLength yields rangefile.UnknownSize.
//   - FetchRange: GetObject with an inclusive Range header, conditional on
//     the ETag seen at construction (IfMatch).
//   - Ranges starting past the end of the object return an empty slice.
//   - All network calls run through the "s3" family Gate unless
//     rangefile.WithGate is given.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"

	"github.com/pithecene-io/rangefile/rangefile"
)

// API defines the subset of the S3 client interface used by the source.
// This enables testing with mock implementations.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Config identifies the object a Source reads.
type Config struct {
	// Bucket is the S3 bucket name. Required.
	Bucket string

	// Key is the full object key. Required.
	Key string
}

// Source implements rangefile.Source using an S3-compatible backend.
type Source struct {
	client API
	gate   *rangefile.Gate
	logger logrus.FieldLogger

	bucket string
	key    string
	name   string
	size   int64
	etag   string
}

// New probes the object with HeadObject and returns a Source for it.
//
// The client must be pre-configured with credentials, region, and endpoint.
// Use github.com/aws/aws-sdk-go-v2/config to load configuration.
//
// Example:
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	client := s3.NewFromConfig(cfg)
//	src, err := s3source.New(ctx, client, s3source.Config{Bucket: "my-bucket", Key: "a/b.bgen"})
func New(ctx context.Context, client API, cfg Config, opts ...rangefile.Option) (*Source, error) {
	if client == nil {
		return nil, errors.New("s3: client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	key := strings.TrimPrefix(cfg.Key, "/")
	if key == "" {
		return nil, errors.New("s3: key is required")
	}

	settings, err := rangefile.ResolveSourceOptions(opts...)
	if err != nil {
		return nil, err
	}

	s := &Source{
		client: client,
		gate:   settings.GateFor(rangefile.FamilyS3),
		bucket: cfg.Bucket,
		key:    key,
		name:   key[strings.LastIndex(key, "/")+1:],
		logger: settings.Logger.WithFields(logrus.Fields{
			"family":  rangefile.FamilyS3,
			"locator": "s3://" + cfg.Bucket + "/" + key,
		}),
	}

	var head *s3.HeadObjectOutput
	_, err = s.gate.Do(ctx, rangefile.OpProbe, func(ctx context.Context) ([]byte, error) {
		out, err := client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key),
		})
		if err != nil {
			if isNotFound(err) {
				return nil, fmt.Errorf("s3://%s/%s: %w", s.bucket, s.key, rangefile.ErrNotFound)
			}
			return nil, fmt.Errorf("%w: s3: head object: %w", rangefile.ErrRemoteFetchFailed, err)
		}
		head = out
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	s.size = rangefile.UnknownSize
	if head.ContentLength != nil && *head.ContentLength >= 0 {
		s.size = *head.ContentLength
	}
	s.etag = aws.ToString(head.ETag)
	return s, nil
}

// Open parses an s3://bucket/key locator and returns a Source for it.
func Open(ctx context.Context, client API, locator string, opts ...rangefile.Option) (*Source, error) {
	loc, err := rangefile.ParseLocator(locator)
	if err != nil {
		return nil, err
	}
	if loc.Scheme != "s3" {
		return nil, fmt.Errorf("%w: %q is not an s3 locator", rangefile.ErrInvalidLocator, locator)
	}
	return New(ctx, client, Config{Bucket: loc.Bucket, Key: loc.Key}, opts...)
}

// Opener returns a rangefile.Opener bound to client, for use with
// rangefile.Resolver.Register("s3", ...).
func Opener(client API) rangefile.Opener {
	return func(ctx context.Context, locator string, opts ...rangefile.Option) (rangefile.Source, error) {
		src, err := Open(ctx, client, locator, opts...)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
}

// Name returns the last segment of the key.
func (s *Source) Name() string { return s.name }

// Size returns the object size from HeadObject, or rangefile.UnknownSize.
func (s *Source) Size() int64 { return s.size }

// Bucket returns the bucket name.
func (s *Source) Bucket() string { return s.bucket }

// Key returns the object key.
func (s *Source) Key() string { return s.key }

// FetchRange reads [start, stop] with a ranged GetObject.
// If start is beyond EOF, returns an empty slice.
// If the range extends beyond EOF, returns available bytes.
func (s *Source) FetchRange(ctx context.Context, start, stop int64) ([]byte, error) {
	stop, ok, err := rangefile.ValidateRange(start, stop, s.size)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []byte{}, nil
	}

	// S3 Range header format: "bytes=start-end" (inclusive)
	rangeHeader := rangefile.RangeHeader(start, stop)
	s.logger.WithField("range", rangeHeader).Debug("range request")

	return s.gate.Do(ctx, rangefile.OpFetch, func(ctx context.Context) ([]byte, error) {
		input := &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key),
			Range:  aws.String(rangeHeader),
		}
		if s.etag != "" {
			input.IfMatch = aws.String(s.etag)
		}

		out, err := s.client.GetObject(ctx, input)
		if err != nil {
			var apiErr smithy.APIError
			if errors.As(err, &apiErr) {
				switch apiErr.ErrorCode() {
				case "InvalidRange":
					return []byte{}, nil
				case "PreconditionFailed", "412":
					return nil, fmt.Errorf("%w: s3: range read: %w", rangefile.ErrRemoteFetchFailed, rangefile.ErrObjectChanged)
				}
			}
			return nil, fmt.Errorf("%w: s3: range read: %w", rangefile.ErrRemoteFetchFailed, err)
		}
		defer func() { _ = out.Body.Close() }()

		data, err := io.ReadAll(out.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: s3: reading range body: %w", rangefile.ErrRemoteFetchFailed, err)
		}
		return data, nil
	})
}

// isNotFound checks if an error indicates the object was not found.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey" || code == "404"
	}
	return false
}

var _ rangefile.Source = (*Source)(nil)
