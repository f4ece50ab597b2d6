package objectstore

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"staysense/internal/adapters/observability"
	"staysense/internal/domain"
)

// Store keeps hotel images in an S3-compatible bucket.
type Store struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL prefixes object keys in returned URLs; defaults to <scheme>://<endpoint>/<bucket>.
	PublicURL string
}

func New(ctx context.Context, o Options) (*Store, error) {
	client, err := minio.New(o.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(o.AccessKey, o.SecretKey, ""),
		Secure: o.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	exists, err := client.BucketExists(ctx, o.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, o.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
		log.Info().Str("bucket", o.Bucket).Msg("object store bucket created")
	}

	pub := strings.TrimRight(o.PublicURL, "/")
	if pub == "" {
		scheme := "http"
		if o.UseSSL {
			scheme = "https"
		}
		pub = fmt.Sprintf("%s://%s/%s", scheme, client.EndpointURL().Host, o.Bucket)
	}
	return &Store{client: client, bucket: o.Bucket, publicURL: pub}, nil
}

// Upload stores one image under a fresh key and returns its URL and key.
func (s *Store) Upload(ctx context.Context, in domain.ImageUpload) (domain.Image, error) {
	key := ObjectKey(in.Filename)
	start := time.Now()
	_, err := s.client.PutObject(ctx, s.bucket, key, in.Data, in.Size, minio.PutObjectOptions{
		ContentType: in.ContentType,
	})
	status := 200
	if err != nil {
		status = 500
	}
	observability.ObserveExternal("objectstore", "put", status, time.Since(start))
	if err != nil {
		return domain.Image{}, domain.Upstream("objectstore", err)
	}
	return domain.Image{URL: s.publicURL + "/" + key, Filename: key}, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	status := 200
	if err != nil {
		status = 500
	}
	observability.ObserveExternal("objectstore", "remove", status, time.Since(start))
	return domain.Upstream("objectstore", err)
}

// ObjectKey builds "hotels/<uuid><ext>" keeping only the original extension.
func ObjectKey(filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	if len(ext) > 8 {
		ext = ""
	}
	return "hotels/" + uuid.NewString() + ext
}
