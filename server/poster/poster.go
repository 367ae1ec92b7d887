package poster

import (
	"context"
	"fmt"
	"time"

	"github.com/mattermost/mattermost/server/public/model"

	"github.com/borderwatch/alert-dashboard/server/backend"
	"github.com/borderwatch/alert-dashboard/server/formatter"
	"github.com/borderwatch/alert-dashboard/server/hashtag"
)

const postTimeout = 10 * time.Second

// PostAPI is the subset of the Mattermost REST client used to post alerts.
// *model.Client4 satisfies it.
type PostAPI interface {
	CreatePost(ctx context.Context, post *model.Post) (*model.Post, *model.Response, error)
}

// Poster posts alerts to Mattermost channels.
// This struct is stateless - it only holds immutable configuration (API and botID).
type Poster struct {
	api   PostAPI
	botID string
}

// New creates a new Poster instance.
func New(api PostAPI, botID string) *Poster {
	return &Poster{
		api:   api,
		botID: botID,
	}
}

// NewClient creates a Poster that talks to the Mattermost server at serverURL
// with a bot access token.
func NewClient(serverURL, token, botID string) *Poster {
	client := model.NewAPIv4Client(serverURL)
	client.SetToken(token)
	return New(client, botID)
}

// PostAlert posts a formatted alert to a Mattermost channel, followed by a threaded
// reply carrying the alert hashtags.
func (p *Poster) PostAlert(alert backend.Alert, channelID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
	defer cancel()

	attachment := formatter.FormatAlert(alert)

	post := &model.Post{
		UserId:    p.botID,
		ChannelId: channelID,
		Type:      model.PostTypeSlackAttachment,
		Props:     model.StringInterface{},
	}
	model.ParseSlackAttachment(post, []*model.SlackAttachment{attachment})

	created, _, err := p.api.CreatePost(ctx, post)
	if err != nil {
		return fmt.Errorf("failed to post alert %s: %w", alert.AlertID, err)
	}

	tags := hashtag.Generate(alert)
	if tags == "" {
		return nil
	}

	reply := &model.Post{
		UserId:    p.botID,
		ChannelId: channelID,
		RootId:    created.Id,
		Message:   tags,
	}
	if _, _, err := p.api.CreatePost(ctx, reply); err != nil {
		return fmt.Errorf("failed to post hashtags for alert %s: %w", alert.AlertID, err)
	}
	return nil
}
