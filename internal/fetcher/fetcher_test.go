package fetcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tgforward/internal/model"
	"tgforward/internal/platform/fake"
)

func TestStream_SplitsAlbumsAndSingles(t *testing.T) {
	client := fake.New()
	source := model.ChannelKey{ID: -100111}

	client.AddMessage(source, &model.MessageDescriptor{Source: source, MessageID: 1, Kind: model.KindText}, nil)
	client.AddMessage(source, &model.MessageDescriptor{Source: source, MessageID: 2, Kind: model.KindPhoto, AlbumKey: "g1"}, []byte("a"))
	client.AddMessage(source, &model.MessageDescriptor{Source: source, MessageID: 3, Kind: model.KindPhoto, AlbumKey: "g1"}, []byte("b"))
	client.AddMessage(source, &model.MessageDescriptor{Source: source, MessageID: 4, Kind: model.KindText}, nil)

	f := New(client, zap.NewNop(), 10)

	var albums [][]*model.MessageDescriptor
	var singles []*model.MessageDescriptor
	err := f.Stream(context.Background(), source, 4, 1, func(b Batch) bool {
		if b.Album != nil {
			albums = append(albums, b.Album)
		}
		if b.Singles != nil {
			singles = append(singles, b.Singles...)
		}
		return true
	})
	require.NoError(t, err)
	require.Len(t, albums, 1)
	assert.Len(t, albums[0], 2)
	assert.Len(t, singles, 2)
}

func TestStream_AlbumMembersOrderedAscendingByMessageID(t *testing.T) {
	client := fake.New()
	source := model.ChannelKey{ID: -100444}

	// registered out of order, so a naive "queried message first" assembly
	// would misplace msg 101.
	client.AddMessage(source, &model.MessageDescriptor{Source: source, MessageID: 102, Kind: model.KindPhoto, AlbumKey: "g2"}, []byte("c"))
	client.AddMessage(source, &model.MessageDescriptor{Source: source, MessageID: 100, Kind: model.KindPhoto, AlbumKey: "g2"}, []byte("a"))
	client.AddMessage(source, &model.MessageDescriptor{Source: source, MessageID: 101, Kind: model.KindPhoto, AlbumKey: "g2"}, []byte("b"))

	f := New(client, zap.NewNop(), 10)

	var albums [][]*model.MessageDescriptor
	err := f.Stream(context.Background(), source, 102, 100, func(b Batch) bool {
		if b.Album != nil {
			albums = append(albums, b.Album)
		}
		return true
	})
	require.NoError(t, err)
	require.Len(t, albums, 1)
	require.Len(t, albums[0], 3)
	assert.Equal(t, []int{100, 101, 102}, []int{albums[0][0].MessageID, albums[0][1].MessageID, albums[0][2].MessageID})
}

func TestStream_DeduplicatesAcrossCalls(t *testing.T) {
	client := fake.New()
	source := model.ChannelKey{ID: -100222}
	client.AddMessage(source, &model.MessageDescriptor{Source: source, MessageID: 1, Kind: model.KindText}, nil)

	f := New(client, zap.NewNop(), 10)
	var seen int
	collect := func(b Batch) bool {
		seen += len(b.Singles)
		return true
	}
	require.NoError(t, f.Stream(context.Background(), source, 1, 1, collect))
	require.NoError(t, f.Stream(context.Background(), source, 1, 1, collect))
	assert.Equal(t, 1, seen, "a message already processed must not be yielded twice")
}

func TestStream_StopsEarlyWhenYieldReturnsFalse(t *testing.T) {
	client := fake.New()
	source := model.ChannelKey{ID: -100333}
	for i := 1; i <= 5; i++ {
		client.AddMessage(source, &model.MessageDescriptor{Source: source, MessageID: i, Kind: model.KindText}, nil)
	}
	f := New(client, zap.NewNop(), 1)
	calls := 0
	err := f.Stream(context.Background(), source, 5, 1, func(b Batch) bool {
		calls++
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
