// Package storage uploads completion proof images to S3.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ObjectPutter is the slice of the S3 client the uploader needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type ProofStore struct {
	client     ObjectPutter
	bucket     string
	publicBase string
}

func NewProofStore(ctx context.Context, region, bucket, publicBase string) (*ProofStore, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewProofStoreWithClient(s3.NewFromConfig(cfg), region, bucket, publicBase), nil
}

func NewProofStoreWithClient(client ObjectPutter, region, bucket, publicBase string) *ProofStore {
	if publicBase == "" {
		publicBase = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return &ProofStore{client: client, bucket: bucket, publicBase: strings.TrimRight(publicBase, "/")}
}

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

func ExtensionFor(contentType string) (string, bool) {
	ext, ok := allowedTypes[contentType]
	return ext, ok
}

// Upload stores body under proofs/<user>/<uuid><ext> and returns its public URL.
func (s *ProofStore) Upload(ctx context.Context, userID uuid.UUID, contentType string, body io.Reader) (string, error) {
	ext, ok := ExtensionFor(contentType)
	if !ok {
		return "", fmt.Errorf("unsupported content type %q", contentType)
	}
	key := path.Join("proofs", userID.String(), uuid.NewString()+ext)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.publicBase + "/" + key, nil
}
