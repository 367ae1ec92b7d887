package poster

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/borderwatch/alert-dashboard/server/backend"
)

type mockPostAPI struct {
	mock.Mock
}

func (m *mockPostAPI) CreatePost(ctx context.Context, post *model.Post) (*model.Post, *model.Response, error) {
	args := m.Called(ctx, post)
	created, _ := args.Get(0).(*model.Post)
	return created, nil, args.Error(1)
}

func testAlert() backend.Alert {
	return backend.Alert{
		BackendName: "Detector 2",
		AlertID:     "A-1",
		CameraID:    "cam_07",
		ObjectType:  "person",
		EventTime:   time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
		ImageURL:    "https://bucket/alerts/A-1.jpeg",
	}
}

func isMainPost(post *model.Post) bool { return post.RootId == "" }

func TestPostAlert_Success(t *testing.T) {
	api := &mockPostAPI{}
	defer api.AssertExpectations(t)

	api.On("CreatePost", mock.Anything, mock.MatchedBy(func(post *model.Post) bool {
		if !isMainPost(post) {
			return false
		}
		assert.Equal(t, "bot-user-id", post.UserId)
		assert.Equal(t, "channel-id", post.ChannelId)
		assert.Equal(t, model.PostTypeSlackAttachment, post.Type)
		attachments := post.Attachments()
		require.Len(t, attachments, 1)
		assert.Equal(t, "https://bucket/alerts/A-1.jpeg", attachments[0].ImageURL)
		return true
	})).Return(&model.Post{Id: "main-post-id"}, nil).Once()

	api.On("CreatePost", mock.Anything, mock.MatchedBy(func(post *model.Post) bool {
		if isMainPost(post) {
			return false
		}
		assert.Equal(t, "main-post-id", post.RootId)
		assert.Equal(t, "🏷️ #Person, #Cam07", post.Message)
		return true
	})).Return(&model.Post{Id: "reply-post-id"}, nil).Once()

	p := New(api, "bot-user-id")
	require.NoError(t, p.PostAlert(testAlert(), "channel-id"))
}

func TestPostAlert_MainPostError(t *testing.T) {
	api := &mockPostAPI{}
	defer api.AssertExpectations(t)

	api.On("CreatePost", mock.Anything, mock.Anything).Return(nil, errors.New("channel not found")).Once()

	err := New(api, "bot-user-id").PostAlert(testAlert(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to post alert A-1")
	assert.Contains(t, err.Error(), "channel not found")
	api.AssertNumberOfCalls(t, "CreatePost", 1)
}

func TestPostAlert_ReplyPostError(t *testing.T) {
	api := &mockPostAPI{}
	defer api.AssertExpectations(t)

	api.On("CreatePost", mock.Anything, mock.MatchedBy(isMainPost)).Return(&model.Post{Id: "main"}, nil).Once()
	api.On("CreatePost", mock.Anything, mock.MatchedBy(func(p *model.Post) bool { return !isMainPost(p) })).
		Return(nil, errors.New("permission denied")).Once()

	err := New(api, "bot-user-id").PostAlert(testAlert(), "channel-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to post hashtags for alert A-1")
}

func TestNewClient_PostsOverREST(t *testing.T) {
	var paths []string
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"post-1"}`))
	}))
	defer srv.Close()

	p := NewClient(srv.URL, "bot-token", "bot-user-id")
	require.NoError(t, p.PostAlert(testAlert(), "channel-id"))

	assert.Equal(t, []string{"POST /api/v4/posts", "POST /api/v4/posts"}, paths)
	assert.Equal(t, "BEARER bot-token", auth)
}
