package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tgforward/internal/capability"
	"tgforward/internal/downloader"
	"tgforward/internal/history"
	"tgforward/internal/model"
	"tgforward/internal/pipeline"
	"tgforward/internal/platform"
	"tgforward/internal/platform/fake"
	"tgforward/internal/ratelimit"
	"tgforward/internal/resolver"
)

func newTestEngine(t *testing.T) (*Engine, *fake.Client, *history.Store) {
	t.Helper()
	client := fake.New()
	log := zap.NewNop()
	store, err := history.Open(history.DefaultPaths(t.TempDir()), log)
	require.NoError(t, err)
	res := resolver.New(client, log, time.Minute)
	prober := capability.New(client, log, time.Minute)
	rl := ratelimit.New(ratelimit.DefaultOptions(), log)
	return New(client, res, prober, store, rl, log), client, store
}

func TestRun_DirectForward_SkipsAlreadyDelivered(t *testing.T) {
	e, client, store := newTestEngine(t)
	source := model.ChannelKey{ID: -100111}
	target := model.ChannelKey{ID: -100222}

	client.AddChat(source, &platform.ChatInfo{Key: source, IsChannel: true, HasProtectedContent: false})
	client.AddChat(target, &platform.ChatInfo{Key: target, IsChannel: true, AdminRights: &platform.AdminRights{IsAdmin: true, CanPost: true}})
	client.AddMessage(source, &model.MessageDescriptor{Source: source, MessageID: 1, Kind: model.KindText}, nil)

	cfg := Config{
		Pairs:   []Pair{{Source: "-100111", Targets: []string{"-100222"}}},
		StartID: 1,
		EndID:   1,
	}

	stats := e.Run(context.Background(), cfg)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Success)
	assert.True(t, store.GetForwardTargets(source, 1)[target.String()])

	// re-run: already delivered, should be skipped this time
	stats2 := e.Run(context.Background(), cfg)
	assert.Equal(t, 1, stats2.Skipped)
	assert.Equal(t, 0, stats2.Success)
}

func TestRun_DownloadUpload_WhenSourceForwardRestricted(t *testing.T) {
	e, client, _ := newTestEngine(t)
	source := model.ChannelKey{ID: -100333}
	target := model.ChannelKey{ID: -100444}

	client.AddChat(source, &platform.ChatInfo{Key: source, IsChannel: true, HasProtectedContent: true})
	client.AddChat(target, &platform.ChatInfo{Key: target, IsChannel: true, AdminRights: &platform.AdminRights{IsAdmin: true, CanPost: true}})
	client.AddMessage(source, &model.MessageDescriptor{Source: source, MessageID: 5, Kind: model.KindPhoto, FileName: "x.jpg"}, []byte("bytes"))

	cfg := Config{
		Pairs:           []Pair{{Source: "-100333", Targets: []string{"-100444"}}},
		StartID:         5,
		EndID:           5,
		DownloadOptions: downloader.DefaultOptions(t.TempDir()),
		PipelineOptions: pipeline.DefaultOptions(),
	}
	cfg.PipelineOptions.Timeout = 10 * time.Second

	stats := e.Run(context.Background(), cfg)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Success)
}

func TestRun_MediaTypeFilterSkipsDisallowedKind(t *testing.T) {
	e, client, _ := newTestEngine(t)
	source := model.ChannelKey{ID: -100555}
	target := model.ChannelKey{ID: -100666}

	client.AddChat(source, &platform.ChatInfo{Key: source, IsChannel: true})
	client.AddChat(target, &platform.ChatInfo{Key: target, IsChannel: true, AdminRights: &platform.AdminRights{IsAdmin: true, CanPost: true}})
	client.AddMessage(source, &model.MessageDescriptor{Source: source, MessageID: 1, Kind: model.KindVideo}, nil)

	cfg := Config{
		Pairs:      []Pair{{Source: "-100555", Targets: []string{"-100666"}}},
		StartID:    1,
		EndID:      1,
		MediaTypes: map[model.MediaKind]bool{model.KindPhoto: true},
	}
	stats := e.Run(context.Background(), cfg)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Success)
}
