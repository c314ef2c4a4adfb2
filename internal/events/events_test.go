package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"erpsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewOutboundCreated(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	e := NewOutboundCreated(&models.OutboundMessage{
		ID:         9,
		Shop:       "acme.myshopify.com",
		EntityCode: models.EntityCompany,
		PlatformID: "77",
		UpdateType: models.StringPtr("create"),
		CreatedAt:  created,
	})

	raw, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 9,
		"shop": "acme.myshopify.com",
		"entityCode": "company",
		"shopifyId": "77",
		"updateType": "create",
		"createdAt": "2024-05-01T10:00:00Z"
	}`, string(raw))
}

func TestSyncRequestWireFormat(t *testing.T) {
	raw, err := json.Marshal(SyncRequest{MessageID: 42})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message_id": 42}`, string(raw))
	assert.Equal(t, "42", MessageKey(42))
}

func TestNewPublisher_WithoutBrokersIsNop(t *testing.T) {
	p := NewPublisher(nil, zap.NewNop())
	assert.IsType(t, Nop{}, p)
	assert.NoError(t, p.Publish(context.Background(), "topic", "k", SyncRequest{MessageID: 1}))
	assert.NoError(t, p.Close())
}
