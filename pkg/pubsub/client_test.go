package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acari-app/acari-backend/pkg/config"
)

func TestResolveTopics(t *testing.T) {
	topics := resolveTopics("acari-prod", config.PubSubConfig{
		BillingTopic: " acari-billing-events ",
		AssetsTopic:  "projects/other/topics/assets",
	})

	assert.Equal(t, map[string]string{
		"acari-billing-events":         "projects/acari-prod/topics/acari-billing-events",
		"projects/other/topics/assets": "projects/other/topics/assets",
	}, topics)
	assert.Empty(t, resolveTopics("acari-prod", config.PubSubConfig{AssetsTopic: "  "}))
}

func TestClientOptionsPreferInlineCredentials(t *testing.T) {
	assert.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/key.json"}), 1)
	assert.Len(t, clientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/key.json"}), 1)
	assert.Empty(t, clientOptions(config.GCPConfig{}))
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{BillingTopic: "b"}, nil)
	assert.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(context.Background(), config.GCPConfig{ProjectID: "p"}, config.PubSubConfig{}, nil)
	assert.ErrorIs(t, err, errNoTopics)
}

func TestPublishRejectsUnknownTopic(t *testing.T) {
	c := &Client{topics: map[string]string{"billing": "projects/p/topics/billing"}}

	_, err := c.Publish(context.Background(), "marketing", nil)
	require.ErrorIs(t, err, ErrUnknownTopic)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}
