package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	puts   map[string]string
	putErr error
	pages  []*s3.ListObjectsV2Output
	listed []*s3.ListObjectsV2Input
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.puts == nil {
		f.puts = map[string]string{}
	}
	f.puts[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = string(body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("multipart not expected")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("multipart not expected")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("multipart not expected")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	copied := *in
	f.listed = append(f.listed, &copied)
	if len(f.pages) == 0 {
		return &s3.ListObjectsV2Output{}, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "errors.log")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestS3Service_UploadFile(t *testing.T) {
	client := &fakeS3{}
	svc := NewS3Service(client)
	p := writeFile(t, "2024-03-01T12:00:00Z - ERROR: boom\n")

	location, err := svc.UploadFile(context.Background(), p, "logs", "/agenda-errors/x.log")
	require.NoError(t, err)

	assert.Equal(t, "s3://logs/agenda-errors/x.log", location)
	assert.Equal(t, "2024-03-01T12:00:00Z - ERROR: boom\n", client.puts["logs/agenda-errors/x.log"])
}

func TestS3Service_UploadFileValidation(t *testing.T) {
	svc := NewS3Service(&fakeS3{})
	ctx := context.Background()

	_, err := svc.UploadFile(ctx, "errors.log", "", "key")
	assert.Error(t, err)
	_, err = svc.UploadFile(ctx, "errors.log", "logs", "/")
	assert.Error(t, err)
	_, err = svc.UploadFile(ctx, filepath.Join(t.TempDir(), "missing.log"), "logs", "key")
	assert.Error(t, err)
}

func TestS3Service_ListObjectsFollowsContinuation(t *testing.T) {
	modified := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	client := &fakeS3{pages: []*s3.ListObjectsV2Output{
		{
			Contents:              []types.Object{{Key: aws.String("p/a.log"), Size: aws.Int64(3), LastModified: &modified}},
			IsTruncated:           aws.Bool(true),
			NextContinuationToken: aws.String("next"),
		},
		{
			Contents: []types.Object{{Key: aws.String("p/b.log"), Size: aws.Int64(5)}},
		},
	}}
	svc := NewS3Service(client)

	objects, err := svc.ListObjects(context.Background(), "logs", "p/")
	require.NoError(t, err)

	require.Len(t, objects, 2)
	assert.Equal(t, "p/a.log", objects[0].Key)
	assert.Equal(t, int64(5), objects[1].Size)
	require.Len(t, client.listed, 2)
	assert.Equal(t, "next", aws.ToString(client.listed[1].ContinuationToken))
}

func TestArchiver_Key(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 5, 7, 0, time.FixedZone("BRT", -3*3600))

	assert.Equal(t, "agenda-errors/20240301T120507Z-errors.log", NewArchiver(nil, "b", "/agenda-errors/").Key(at))
	assert.Equal(t, "20240301T120507Z-errors.log", NewArchiver(nil, "b", "").Key(at))
}

func TestArchiver_Archive(t *testing.T) {
	client := &fakeS3{}
	a := NewArchiver(NewS3Service(client), "logs", "agenda-errors")
	a.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	location, err := a.Archive(context.Background(), writeFile(t, "line\n"))
	require.NoError(t, err)

	assert.Equal(t, "s3://logs/agenda-errors/20240301T120000Z-errors.log", location)
	assert.Equal(t, "line\n", client.puts["logs/agenda-errors/20240301T120000Z-errors.log"])
}

func TestArchiver_SkipsEmptyOrMissing(t *testing.T) {
	client := &fakeS3{putErr: errors.New("should not upload")}
	a := NewArchiver(NewS3Service(client), "logs", "agenda-errors")

	location, err := a.Archive(context.Background(), writeFile(t, ""))
	require.NoError(t, err)
	assert.Empty(t, location)

	location, err = a.Archive(context.Background(), filepath.Join(t.TempDir(), "absent.log"))
	require.NoError(t, err)
	assert.Empty(t, location)
}

func TestArchiver_Archived(t *testing.T) {
	client := &fakeS3{}
	a := NewArchiver(NewS3Service(client), "logs", "agenda-errors")

	_, err := a.Archived(context.Background())
	require.NoError(t, err)

	require.Len(t, client.listed, 1)
	assert.Equal(t, "agenda-errors/", aws.ToString(client.listed[0].Prefix))
}
