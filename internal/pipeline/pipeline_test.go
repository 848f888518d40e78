package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tgforward/internal/downloader"
	"tgforward/internal/fetcher"
	"tgforward/internal/history"
	"tgforward/internal/model"
	"tgforward/internal/platform/fake"
	"tgforward/internal/resolver"
	"tgforward/internal/uploader"
)

func TestRun_DeliversSinglesAndAlbumsToTarget(t *testing.T) {
	client := fake.New()
	source := model.ChannelKey{ID: -100111}
	target := model.ChannelKey{ID: -100222}

	client.AddChat(target, nil)
	client.AddMessage(source, &model.MessageDescriptor{Source: source, MessageID: 2, Kind: model.KindPhoto, FileName: "a.jpg"}, []byte("standalone"))
	client.AddMessage(source, &model.MessageDescriptor{Source: source, MessageID: 3, Kind: model.KindPhoto, AlbumKey: "g1"}, []byte("p1"))
	client.AddMessage(source, &model.MessageDescriptor{Source: source, MessageID: 4, Kind: model.KindPhoto, AlbumKey: "g1"}, []byte("p2"))

	log := zap.NewNop()
	store, err := history.Open(history.DefaultPaths(t.TempDir()), log)
	require.NoError(t, err)

	f := fetcher.New(client, log, 10)
	dlOpts := downloader.DefaultOptions(t.TempDir())
	dlOpts.RetryDelay = time.Millisecond
	d, err := downloader.New(client, store, dlOpts, log)
	require.NoError(t, err)
	res := resolver.New(client, log, time.Minute)
	u := uploader.New(client, store, res, log)

	opts := DefaultOptions()
	opts.Timeout = 10 * time.Second
	c := New(f, d, u, opts, log)

	stats, err := c.Run(context.Background(), source, 4, 2, []model.ChannelKey{target}, uploader.Policy{})
	require.NoError(t, err)
	assert.False(t, stats.TimedOut)
	assert.True(t, c.DownloadsComplete())
	assert.NotEmpty(t, stats.Items)

	var delivered int
	for _, item := range stats.Items {
		delivered += len(item.Succeeded)
	}
	assert.Greater(t, delivered, 0)
}
