package archive

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type upload struct {
	Bucket, Key string
	Body        string
}

// MockUploader captures uploads in memory.
type MockUploader struct {
	Uploads []upload
	Err     error
}

func (m *MockUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.Uploads = append(m.Uploads, upload{Bucket: aws.ToString(in.Bucket), Key: aws.ToString(in.Key), Body: string(body)})
	return &manager.UploadOutput{Location: "s3://" + aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)}, nil
}

func TestArchiveWritesNewlineDelimitedObject(t *testing.T) {
	mu := &MockUploader{}
	a := newS3(mu, "fraud-bucket", "delivery")
	a.now = func() time.Time { return time.Date(2024, 3, 9, 17, 45, 0, 0, time.UTC) }

	err := a.Archive(context.Background(), KindEnriched, [][]byte{
		[]byte(`{"transaction_id":"t-1"}` + "\n"),
		[]byte(`{"transaction_id":"t-2"}`),
	})
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if len(mu.Uploads) != 1 {
		t.Fatalf("Expected 1 upload, got %d", len(mu.Uploads))
	}

	up := mu.Uploads[0]
	if up.Bucket != "fraud-bucket" {
		t.Errorf("Expected bucket fraud-bucket, got %s", up.Bucket)
	}
	keyPattern := regexp.MustCompile(`^delivery/enriched/2024/03/09/17/[0-9a-f-]{36}\.jsonl$`)
	if !keyPattern.MatchString(up.Key) {
		t.Errorf("Unexpected object key %s", up.Key)
	}
	want := "{\"transaction_id\":\"t-1\"}\n{\"transaction_id\":\"t-2\"}\n"
	if up.Body != want {
		t.Errorf("Body mismatch:\n got %q\nwant %q", up.Body, want)
	}
}

func TestArchiveKinds(t *testing.T) {
	a := newS3(&MockUploader{}, "b", "")
	at := time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)

	if k := a.Key(KindFailed, at); !regexp.MustCompile(`^processing-failed/2024/01/02/03/`).MatchString(k) {
		t.Errorf("Unexpected failed key %s", k)
	}
	if a.Key(KindEnriched, at) == a.Key(KindEnriched, at) {
		t.Errorf("Keys for separate batches must differ")
	}
}

func TestArchiveEmptyBatch(t *testing.T) {
	mu := &MockUploader{}
	if err := newS3(mu, "b", "p/").Archive(context.Background(), KindFailed, nil); err != nil {
		t.Fatalf("Empty batch should not error: %v", err)
	}
	if len(mu.Uploads) != 0 {
		t.Errorf("Empty batch should not upload")
	}
}

func TestArchiveUploadError(t *testing.T) {
	boom := errors.New("access denied")
	a := newS3(&MockUploader{Err: boom}, "b", "p")
	if err := a.Archive(context.Background(), KindEnriched, [][]byte{[]byte("{}")}); !errors.Is(err, boom) {
		t.Errorf("Expected wrapped upload error, got %v", err)
	}
}
