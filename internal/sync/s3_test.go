package sync

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakePutter struct {
	keys   []string
	bodies []string
	err    error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.keys = append(f.keys, aws.ToString(in.Key))
	f.bodies = append(f.bodies, string(body))
	if aws.ToString(in.ContentType) != "application/x-ndjson" {
		return nil, errors.New("unexpected content type " + aws.ToString(in.ContentType))
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3Destination_Write(t *testing.T) {
	fp := &fakePutter{}
	d := newS3Destination(fp, "bucket", "exports/trackd.jsonl", "")

	if err := d.Write(context.Background(), []byte("line\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(fp.keys) != 1 || fp.keys[0] != "exports/trackd.jsonl" || fp.bodies[0] != "line\n" {
		t.Fatalf("unexpected puts: keys=%v bodies=%v", fp.keys, fp.bodies)
	}
}

func TestS3Destination_Snapshot(t *testing.T) {
	fp := &fakePutter{}
	d := newS3Destination(fp, "bucket", "trackd.jsonl", "history")
	d.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

	if err := d.Write(context.Background(), []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := []string{"trackd.jsonl", "history/20260304T050607Z.jsonl"}
	if len(fp.keys) != 2 || fp.keys[0] != want[0] || fp.keys[1] != want[1] {
		t.Fatalf("keys = %v, want %v", fp.keys, want)
	}
}

func TestS3Destination_Error(t *testing.T) {
	d := newS3Destination(&fakePutter{err: errors.New("denied")}, "bucket", "k", "snap")
	if err := d.Write(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected error")
	}
}

func TestS3Destination_String(t *testing.T) {
	d := newS3Destination(&fakePutter{}, "exports", "trackd/latest.jsonl", "")
	if got := d.String(); got != "s3://exports/trackd/latest.jsonl" {
		t.Fatalf("String() = %q", got)
	}
}
