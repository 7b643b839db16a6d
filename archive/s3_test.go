package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestKey(t *testing.T) {
	at := time.Date(2024, 3, 9, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	if got := Key("abc", at); got != "reports/2024/03/abc.json" {
		t.Errorf("Key() = %q", got)
	}
}

func TestArchive(t *testing.T) {
	at := time.Date(2024, 11, 2, 8, 0, 0, 0, time.UTC)

	t.Run("uploads the report as json", func(t *testing.T) {
		putter := &fakePutter{}
		a := &S3Archiver{client: putter, bucket: "reports-bucket"}

		key, err := a.Archive(context.Background(), "r-1", at, map[string]int{"overallScore": 77})
		if err != nil {
			t.Fatalf("Archive() error = %v", err)
		}
		if key != "reports/2024/11/r-1.json" {
			t.Errorf("key = %q", key)
		}
		if aws.ToString(putter.input.Bucket) != "reports-bucket" || aws.ToString(putter.input.ContentType) != "application/json" {
			t.Errorf("input = %+v", putter.input)
		}
		var got map[string]int
		if err := json.Unmarshal(putter.body, &got); err != nil || got["overallScore"] != 77 {
			t.Errorf("body = %s", putter.body)
		}
	})

	t.Run("upload errors are wrapped", func(t *testing.T) {
		boom := errors.New("access denied")
		a := &S3Archiver{client: &fakePutter{err: boom}, bucket: "b"}
		if _, err := a.Archive(context.Background(), "r-1", at, struct{}{}); !errors.Is(err, boom) {
			t.Errorf("Archive() error = %v", err)
		}
	})

	t.Run("config is validated", func(t *testing.T) {
		if _, err := NewS3Archiver(context.Background(), S3Config{Region: "us-east-1"}); err == nil {
			t.Error("expected an error without a bucket")
		}
		if _, err := NewS3Archiver(context.Background(), S3Config{Bucket: "b"}); err == nil {
			t.Error("expected an error without a region")
		}
	})
}
