package capability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tgforward/internal/model"
	"tgforward/internal/platform"
	"tgforward/internal/platform/fake"
)

func TestProbe_ChannelAdminWritable(t *testing.T) {
	client := fake.New()
	key := model.ChannelKey{ID: -100123}
	client.AddChat(key, &platform.ChatInfo{
		Key:                 key,
		IsChannel:           true,
		HasProtectedContent: false,
		AdminRights:         &platform.AdminRights{IsAdmin: true, CanPost: true},
	})

	p := New(client, zap.NewNop(), time.Minute)
	rec, err := p.Probe(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, rec.Writable)
	assert.True(t, rec.ForwardAllowed)
	assert.True(t, rec.Readable)
}

func TestProbe_UnreadableChatReportsNotReadable(t *testing.T) {
	client := fake.New()
	key := model.ChannelKey{ID: -100321}
	client.AddChat(key, &platform.ChatInfo{
		Key:         key,
		IsChannel:   true,
		AdminRights: &platform.AdminRights{IsAdmin: true, CanPost: true},
	})
	client.UnreadableChats = map[model.ChannelKey]bool{key: true}

	p := New(client, zap.NewNop(), time.Minute)
	rec, err := p.Probe(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, rec.Readable, "a chat whose history read fails must not be reported readable")
}

func TestProbe_ProtectedContentBlocksForward(t *testing.T) {
	client := fake.New()
	key := model.ChannelKey{ID: -100456}
	client.AddChat(key, &platform.ChatInfo{
		Key:                 key,
		IsChannel:           true,
		HasProtectedContent: true,
		AdminRights:         &platform.AdminRights{IsAdmin: true, CanPost: true},
	})

	p := New(client, zap.NewNop(), time.Minute)
	rec, err := p.Probe(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, rec.ForwardAllowed)
}

func TestProbe_CachesWithinTTL(t *testing.T) {
	client := fake.New()
	key := model.ChannelKey{ID: -100789}
	client.AddChat(key, &platform.ChatInfo{Key: key, IsChannel: true, AdminRights: &platform.AdminRights{IsAdmin: true, CanPost: true}})

	p := New(client, zap.NewNop(), time.Hour)
	ctx := context.Background()
	_, err := p.Probe(ctx, key)
	require.NoError(t, err)
	_, err = p.Probe(ctx, key)
	require.NoError(t, err)

	getChatCalls := 0
	for _, c := range client.Calls {
		if c == "GetChat" {
			getChatCalls++
		}
	}
	assert.Equal(t, 1, getChatCalls, "second probe within TTL should hit the cache")
}

func TestSortByForwardAllowed(t *testing.T) {
	a := model.ChannelKey{ID: 1}
	b := model.ChannelKey{ID: 2}
	c := model.ChannelKey{ID: 3}
	caps := map[model.ChannelKey]model.CapabilityRecord{
		a: {ForwardAllowed: false},
		b: {ForwardAllowed: true},
		c: {ForwardAllowed: false},
	}
	sorted := SortByForwardAllowed([]model.ChannelKey{a, b, c}, caps)
	assert.Equal(t, []model.ChannelKey{b, a, c}, sorted)
}
