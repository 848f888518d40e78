package reassembler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgforward/internal/model"
)

func TestAssemble_FirstMemberKeepsCaption(t *testing.T) {
	source := model.ChannelKey{ID: -100111}
	artifacts := []model.LocalArtifact{
		{Path: "a", Size: 1, Message: model.MessageDescriptor{Source: source, MessageID: 2, AlbumKey: "g1"}, Caption: ""},
		{Path: "b", Size: 1, Message: model.MessageDescriptor{Source: source, MessageID: 1, AlbumKey: "g1"}, Caption: "the caption"},
		{Path: "c", Size: 1, Message: model.MessageDescriptor{Source: source, MessageID: 3, AlbumKey: "g1"}, Caption: "ignored"},
	}

	grouped := Assemble(artifacts)
	require.Len(t, grouped.Albums, 1)
	album := grouped.Albums[0]
	require.Len(t, album, 3)

	assert.Equal(t, 1, album[0].Message.MessageID)
	assert.Equal(t, "the caption", album[0].Caption)
	assert.Equal(t, "", album[1].Caption)
	assert.Equal(t, "", album[2].Caption)
}

func TestAssemble_SinglesPassThroughUnchanged(t *testing.T) {
	source := model.ChannelKey{ID: -100222}
	artifacts := []model.LocalArtifact{
		{Path: "x", Size: 1, Message: model.MessageDescriptor{Source: source, MessageID: 10}, Caption: "solo"},
	}
	grouped := Assemble(artifacts)
	assert.Empty(t, grouped.Albums)
	require.Len(t, grouped.Singles, 1)
	assert.Equal(t, "solo", grouped.Singles[0].Caption)
}

func TestAssemble_MultipleAlbumsKeptSeparate(t *testing.T) {
	source := model.ChannelKey{ID: -100333}
	artifacts := []model.LocalArtifact{
		{Path: "a1", Size: 1, Message: model.MessageDescriptor{Source: source, MessageID: 1, AlbumKey: "g1"}},
		{Path: "a2", Size: 1, Message: model.MessageDescriptor{Source: source, MessageID: 2, AlbumKey: "g1"}},
		{Path: "b1", Size: 1, Message: model.MessageDescriptor{Source: source, MessageID: 3, AlbumKey: "g2"}},
	}
	grouped := Assemble(artifacts)
	assert.Len(t, grouped.Albums, 2)
}
