package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// -----------------------------------------------------------------------------
// Mock S3 Client for Testing
// -----------------------------------------------------------------------------

// MockS3Client is a test double for API.
type MockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte // bucket/key -> data
	etags   map[string]string
	version int

	// Call counters for test assertions
	HeadObjectCalls int
	GetObjectCalls  int

	// Ranges records the Range header of every GetObject call.
	Ranges []string

	// GetObjectErr, if set, is returned by every GetObject call.
	GetObjectErr error

	// OmitContentLength makes HeadObject leave ContentLength nil.
	OmitContentLength bool
}

// NewMockS3Client creates a new mock S3 client for testing.
func NewMockS3Client() *MockS3Client {
	return &MockS3Client{
		objects: make(map[string][]byte),
		etags:   make(map[string]string),
	}
}

// SetObject stores data under bucket/key, replacing any previous version
// and assigning a new ETag.
func (m *MockS3Client) SetObject(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.version++
	id := bucket + "/" + key
	m.objects[id] = append([]byte(nil), data...)
	m.etags[id] = fmt.Sprintf("\"v%d\"", m.version)
}

// ResetCounts resets call counters for test isolation.
func (m *MockS3Client) ResetCounts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HeadObjectCalls = 0
	m.GetObjectCalls = 0
	m.Ranges = nil
}

// GetObject implements API.GetObject for testing.
func (m *MockS3Client) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	id := aws.ToString(params.Bucket) + "/" + aws.ToString(params.Key)

	m.mu.Lock()
	m.GetObjectCalls++
	m.Ranges = append(m.Ranges, aws.ToString(params.Range))
	injected := m.GetObjectErr
	data, exists := m.objects[id]
	etag := m.etags[id]
	m.mu.Unlock()

	if injected != nil {
		return nil, injected
	}
	if !exists {
		return nil, &types.NoSuchKey{}
	}
	if ifMatch := aws.ToString(params.IfMatch); ifMatch != "" && ifMatch != etag {
		return nil, &smithyAPIError{code: "PreconditionFailed", message: "etag mismatch"}
	}

	// Handle range requests: "bytes=start-end" or "bytes=start-"
	if params.Range != nil {
		rng := strings.TrimPrefix(aws.ToString(params.Range), "bytes=")
		var start, end int64
		end = int64(len(data)) - 1
		if strings.HasSuffix(rng, "-") {
			_, _ = fmt.Sscanf(rng, "%d-", &start)
		} else {
			_, _ = fmt.Sscanf(rng, "%d-%d", &start, &end)
		}

		if start >= int64(len(data)) {
			return nil, &smithyAPIError{code: "InvalidRange"}
		}

		if end >= int64(len(data)) {
			end = int64(len(data)) - 1
		}

		data = data[start : end+1]
	}

	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
		ETag:          aws.String(etag),
	}, nil
}

// HeadObject implements API.HeadObject for testing.
func (m *MockS3Client) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	id := aws.ToString(params.Bucket) + "/" + aws.ToString(params.Key)

	m.mu.Lock()
	m.HeadObjectCalls++
	data, exists := m.objects[id]
	etag := m.etags[id]
	omit := m.OmitContentLength
	m.mu.Unlock()

	if !exists {
		return nil, &types.NotFound{}
	}

	out := &s3.HeadObjectOutput{ETag: aws.String(etag)}
	if !omit {
		out.ContentLength = aws.Int64(int64(len(data)))
	}
	return out, nil
}

// smithyAPIError implements smithy.APIError for testing.
type smithyAPIError struct {
	code    string
	message string
}

func (e *smithyAPIError) Error() string {
	return e.message
}

func (e *smithyAPIError) ErrorCode() string {
	return e.code
}

func (e *smithyAPIError) ErrorMessage() string {
	return e.message
}

func (e *smithyAPIError) ErrorFault() smithy.ErrorFault {
	return smithy.FaultUnknown
}

var _ API = (*MockS3Client)(nil)
