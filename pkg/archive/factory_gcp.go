//go:build gcp

package archive

import "context"

func newGCSStore(ctx context.Context, s GCSSettings) (Store, error) {
	return NewGCSStore(ctx, GCSConfig{Bucket: s.Bucket, Prefix: s.Prefix})
}
