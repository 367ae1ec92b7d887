package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/alicebob/miniredis/v2"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borderwatch/alert-dashboard/server/backend"
	"github.com/borderwatch/alert-dashboard/server/backend/dynamo/mocks"
	"github.com/borderwatch/alert-dashboard/server/kvstore"
)

func newTestKV(t *testing.T) (*kvstore.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := kvstore.NewRedisStore(kvstore.Config{Addr: mr.Addr()})
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestResolver_Resolve(t *testing.T) {
	issued := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("presigns the alert image key", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		api := mocks.NewMockPresignAPI(ctrl)
		resolver := NewResolver(api, "detector1-bucket", "alerts/", nil)
		resolver.now = func() time.Time { return issued }

		api.EXPECT().PresignGetObject(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
				assert.Equal(t, "detector1-bucket", *in.Bucket)
				assert.Equal(t, "alerts/a-1.jpeg", *in.Key)

				var opts s3.PresignOptions
				for _, fn := range optFns {
					fn(&opts)
				}
				assert.Equal(t, time.Hour, opts.Expires)
				return &v4.PresignedHTTPRequest{URL: "https://detector1-bucket.s3/alerts/a-1.jpeg?X-Amz-Expires=3600"}, nil
			})

		img, err := resolver.ResolveImage(context.Background(), "a-1")
		require.NoError(t, err)
		assert.Equal(t, "https://detector1-bucket.s3/alerts/a-1.jpeg?X-Amz-Expires=3600", img.URL)
		assert.Equal(t, issued.Add(time.Hour), img.ExpiresAt)
	})

	t.Run("every call presigns again without a cache", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		api := mocks.NewMockPresignAPI(ctrl)
		resolver := NewResolver(api, "detector1-bucket", "alerts/", nil)

		api.EXPECT().PresignGetObject(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&v4.PresignedHTTPRequest{URL: "https://example/a-1"}, nil).Times(2)

		for i := 0; i < 2; i++ {
			url, err := resolver.Resolve(context.Background(), "a-1")
			require.NoError(t, err)
			assert.Equal(t, "https://example/a-1", url)
		}
	})

	t.Run("presign failure is a resolution error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		api := mocks.NewMockPresignAPI(ctrl)
		resolver := NewResolver(api, "detector1-bucket", "alerts/", nil)

		api.EXPECT().PresignGetObject(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("no credentials"))

		_, err := resolver.Resolve(context.Background(), "a-1")
		require.Error(t, err)
		assert.ErrorIs(t, err, backend.ErrResolutionFailure)
		var resErr *backend.ResolutionError
		require.ErrorAs(t, err, &resErr)
		assert.Equal(t, "a-1", resErr.AlertID)
	})

	t.Run("empty id fails without presigning", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		api := mocks.NewMockPresignAPI(ctrl)
		resolver := NewResolver(api, "detector1-bucket", "alerts/", nil)

		_, err := resolver.Resolve(context.Background(), "")
		assert.ErrorIs(t, err, backend.ErrResolutionFailure)
	})
}

func TestResolver_Cache(t *testing.T) {
	store, mr := newTestKV(t)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	ctrl := gomock.NewController(t)
	api := mocks.NewMockPresignAPI(ctrl)
	cache := NewURLCache(store, "backend-1")
	cache.now = func() time.Time { return now }
	resolver := NewResolver(api, "detector1-bucket", "alerts/", cache)
	resolver.now = func() time.Time { return now }

	api.EXPECT().PresignGetObject(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&v4.PresignedHTTPRequest{URL: "https://example/first"}, nil)

	first, err := resolver.ResolveImage(context.Background(), "a-1")
	require.NoError(t, err)
	assert.Equal(t, "https://example/first", first.URL)
	assert.Equal(t, 55*time.Minute, mr.TTL("backend_backend-1_image_a-1"))

	second, err := resolver.ResolveImage(context.Background(), "a-1")
	require.NoError(t, err)
	assert.Equal(t, first.URL, second.URL, "served from cache")
	assert.True(t, first.ExpiresAt.Equal(second.ExpiresAt))

	now = now.Add(56 * time.Minute)
	api.EXPECT().PresignGetObject(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&v4.PresignedHTTPRequest{URL: "https://example/second"}, nil)

	third, err := resolver.ResolveImage(context.Background(), "a-1")
	require.NoError(t, err)
	assert.Equal(t, "https://example/second", third.URL, "re-resolved inside the refresh buffer")
}
