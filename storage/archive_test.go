package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/fluidpay/internal/types"
)

type fakeS3 struct {
	s3iface.S3API
	puts []*s3.PutObjectInput
	body [][]byte
	err  error
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.puts = append(f.puts, in)
	f.body = append(f.body, b)
	return &s3.PutObjectOutput{}, nil
}

func TestS3ArchiveWritesJSON(t *testing.T) {
	fake := &fakeS3{}
	a := NewS3ArchiveWithClient(fake, "receipts", "settlements")
	s := types.Settlement{
		ID:        uuid.MustParse("6f1c9a52-0d3e-4f43-9c55-51a0f1a7e0b1"),
		Caller:    "0x00000000000000000000000000000000000000a3",
		Status:    types.SettlementSettled,
		Deposited: "2475000",
	}

	require.NoError(t, a.Archive(context.Background(), s))
	require.Len(t, fake.puts, 1)
	assert.Equal(t, "receipts", aws.StringValue(fake.puts[0].Bucket))
	assert.Equal(t, "settlements/0x00000000000000000000000000000000000000a3/6f1c9a52-0d3e-4f43-9c55-51a0f1a7e0b1.json", aws.StringValue(fake.puts[0].Key))

	var got types.Settlement
	require.NoError(t, json.Unmarshal(fake.body[0], &got))
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, "2475000", got.Deposited)
}

func TestS3ArchiveWrapsUploadError(t *testing.T) {
	boom := errors.New("AccessDenied")
	a := NewS3ArchiveWithClient(&fakeS3{err: boom}, "receipts", "")
	err := a.Archive(context.Background(), types.Settlement{ID: uuid.New()})
	assert.ErrorIs(t, err, boom)
}
