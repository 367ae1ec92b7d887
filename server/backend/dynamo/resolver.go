package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/borderwatch/alert-dashboard/server/backend"
	"github.com/borderwatch/alert-dashboard/server/kvstore"
)

// PresignAPI is the subset of the S3 presign client used to resolve alert images.
type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Image is a resolved, time-limited image URL.
type Image struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ImageResolver resolves an alert identifier to its image URL.
type ImageResolver interface {
	ResolveImage(ctx context.Context, alertID string) (Image, error)
}

// Resolver presigns read-only GetObject requests for alert images.
type Resolver struct {
	api    PresignAPI
	bucket string
	prefix string
	ttl    time.Duration
	cache  *URLCache
	now    func() time.Time
}

// NewResolver creates a resolver for images stored under prefix in bucket.
// A nil cache disables caching, so every call presigns a new URL.
func NewResolver(api PresignAPI, bucket, prefix string, cache *URLCache) *Resolver {
	return &Resolver{
		api:    api,
		bucket: bucket,
		prefix: prefix,
		ttl:    backend.ImageURLTTL,
		cache:  cache,
		now:    time.Now,
	}
}

// ObjectKey returns the object key of the image for alertID.
func (r *Resolver) ObjectKey(alertID string) string {
	return r.prefix + alertID + backend.ImageExtension
}

// Resolve returns a presigned URL for the alert image.
func (r *Resolver) Resolve(ctx context.Context, alertID string) (string, error) {
	img, err := r.ResolveImage(ctx, alertID)
	if err != nil {
		return "", err
	}
	return img.URL, nil
}

// ResolveImage returns a presigned URL and its expiry. Every failure is a
// *backend.ResolutionError.
func (r *Resolver) ResolveImage(ctx context.Context, alertID string) (Image, error) {
	if alertID == "" {
		return Image{}, &backend.ResolutionError{AlertID: alertID, Err: errors.New("empty alert ID")}
	}

	if r.cache != nil {
		if img, ok := r.cache.Get(ctx, alertID); ok {
			return img, nil
		}
	}

	key := r.ObjectKey(alertID)
	issuedAt := r.now()
	req, err := r.api.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &r.bucket,
		Key:    &key,
	}, s3.WithPresignExpires(r.ttl))
	if err != nil {
		return Image{}, &backend.ResolutionError{AlertID: alertID, Err: err}
	}
	if req == nil || req.URL == "" {
		return Image{}, &backend.ResolutionError{AlertID: alertID, Err: errors.New("presign returned no URL")}
	}

	img := Image{URL: req.URL, ExpiresAt: issuedAt.Add(r.ttl)}
	if r.cache != nil {
		r.cache.Put(ctx, alertID, img)
	}
	return img, nil
}

// URLCache keeps presigned URLs in the key-value store until shortly before they expire.
type URLCache struct {
	store     kvstore.Store
	backendID string
	buffer    time.Duration
	now       func() time.Time
}

// NewURLCache creates a cache scoped to one backend.
func NewURLCache(store kvstore.Store, backendID string) *URLCache {
	return &URLCache{
		store:     store,
		backendID: backendID,
		buffer:    backend.ImageURLRefreshBuffer,
		now:       time.Now,
	}
}

func (c *URLCache) key(alertID string) string {
	return fmt.Sprintf("backend_%s_image_%s", c.backendID, alertID)
}

// Get returns a cached URL that stays valid for longer than the refresh buffer.
// Cache errors are treated as misses.
func (c *URLCache) Get(ctx context.Context, alertID string) (Image, bool) {
	data, err := c.store.KVGet(ctx, c.key(alertID))
	if err != nil || data == nil {
		return Image{}, false
	}

	var img Image
	if err := json.Unmarshal(data, &img); err != nil {
		return Image{}, false
	}
	if !c.now().Add(c.buffer).Before(img.ExpiresAt) {
		return Image{}, false
	}
	return img, true
}

// Put stores img until the refresh buffer before its expiry. Write failures are ignored;
// the next lookup simply presigns again.
func (c *URLCache) Put(ctx context.Context, alertID string, img Image) {
	ttl := img.ExpiresAt.Sub(c.now()) - c.buffer
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(img)
	if err != nil {
		return
	}
	_ = c.store.KVSetWithExpiry(ctx, c.key(alertID), data, ttl)
}
