package stores

import (
	"SafeStack/pkg/util"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tencentyun/cos-go-sdk-v5"
)

// COSStore writes evidence to a Tencent Cloud COS bucket.
type COSStore struct {
	client  *cos.Client
	baseURL string
}

// NewCOSStore reads COS_BUCKET_URL, COS_SECRET_ID, COS_SECRET_KEY and the optional COS_PUBLIC_BASE.
func NewCOSStore() (*COSStore, error) {
	return newCOSStore(
		util.GetEnv("COS_BUCKET_URL"),
		util.GetEnv("COS_SECRET_ID"),
		util.GetEnv("COS_SECRET_KEY"),
		util.GetEnv("COS_PUBLIC_BASE"),
	)
}

func newCOSStore(bucketURL, secretID, secretKey, publicBase string) (*COSStore, error) {
	u, err := url.Parse(bucketURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid COS_BUCKET_URL %q", bucketURL)
	}
	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Transport: &cos.AuthorizationTransport{SecretID: secretID, SecretKey: secretKey},
	})
	return &COSStore{client: client, baseURL: publicBase}, nil
}

func (s *COSStore) Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	opt := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{ContentType: contentType},
	}
	if size >= 0 {
		opt.ObjectPutHeaderOptions.ContentLength = size
	}
	_, err := s.client.Object.Put(ctx, key, r, opt)
	return err
}

func (s *COSStore) PublicURL(key string) string {
	if s.baseURL != "" {
		return strings.TrimRight(s.baseURL, "/") + "/" + key
	}
	return s.client.Object.GetObjectURL(key).String()
}
