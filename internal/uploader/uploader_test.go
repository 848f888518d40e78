package uploader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tgforward/internal/history"
	"tgforward/internal/model"
	"tgforward/internal/platform/fake"
	"tgforward/internal/resolver"
)

func newTestUploader(t *testing.T) (*Uploader, *fake.Client, *history.Store) {
	t.Helper()
	client := fake.New()
	store, err := history.Open(history.DefaultPaths(t.TempDir()), zap.NewNop())
	require.NoError(t, err)
	res := resolver.New(client, zap.NewNop(), time.Minute)
	return New(client, store, res, zap.NewNop()), client, store
}

func TestUploadSingle_FirstTargetThenCopy(t *testing.T) {
	u, client, store := newTestUploader(t)
	t0 := model.ChannelKey{ID: -100111}
	t1 := model.ChannelKey{ID: -100222}
	artifact := model.LocalArtifact{Path: "/tmp/a.jpg", Size: 10, Message: model.MessageDescriptor{Kind: model.KindPhoto}}

	result := u.UploadSingle(context.Background(), artifact, []model.ChannelKey{t0, t1}, Policy{})
	assert.Empty(t, result.Failed)
	assert.ElementsMatch(t, []model.ChannelKey{t0, t1}, result.Succeeded)

	var sendMedia, copyMessage int
	for _, c := range client.Calls {
		if c == "SendMedia" {
			sendMedia++
		}
		if c == "CopyMessage" {
			copyMessage++
		}
	}
	assert.Equal(t, 1, sendMedia, "only target0 should receive a native send")
	assert.Equal(t, 1, copyMessage, "remaining targets should receive a server-side copy")

	assert.True(t, store.IsFileUploaded(artifact.Path, t0))
	assert.True(t, store.IsFileUploaded(artifact.Path, t1))
}

func TestUploadSingle_SkipsAlreadyUploadedTarget(t *testing.T) {
	u, client, _ := newTestUploader(t)
	t0 := model.ChannelKey{ID: -100333}
	artifact := model.LocalArtifact{Path: "/tmp/b.jpg", Size: 10, Message: model.MessageDescriptor{Kind: model.KindPhoto}}

	first := u.UploadSingle(context.Background(), artifact, []model.ChannelKey{t0}, Policy{})
	require.Empty(t, first.Failed)

	callsBefore := len(client.Calls)
	second := u.UploadSingle(context.Background(), artifact, []model.ChannelKey{t0}, Policy{})
	require.Empty(t, second.Failed)
	assert.Equal(t, callsBefore, len(client.Calls), "already-uploaded target must not trigger another RPC")
}

func TestUploadAlbum_SendsAsOneMediaGroup(t *testing.T) {
	u, client, _ := newTestUploader(t)
	t0 := model.ChannelKey{ID: -100444}
	artifacts := []model.LocalArtifact{
		{Path: "/tmp/c1.jpg", Size: 10, Message: model.MessageDescriptor{MessageID: 1, AlbumKey: "g1", Kind: model.KindPhoto}},
		{Path: "/tmp/c2.jpg", Size: 10, Message: model.MessageDescriptor{MessageID: 2, AlbumKey: "g1", Kind: model.KindPhoto}},
	}
	result := u.UploadAlbum(context.Background(), artifacts, []model.ChannelKey{t0}, Policy{})
	assert.Empty(t, result.Failed)

	found := false
	for _, c := range client.Calls {
		if c == "SendMediaGroup" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestUploadAlbum_SingleSurvivingMemberSendsAsSingle(t *testing.T) {
	u, client, _ := newTestUploader(t)
	t0 := model.ChannelKey{ID: -100555}
	artifacts := []model.LocalArtifact{
		{Path: "/tmp/d1.jpg", Size: 10, Message: model.MessageDescriptor{MessageID: 1, AlbumKey: "g2", Kind: model.KindPhoto}},
	}
	result := u.UploadAlbum(context.Background(), artifacts, []model.ChannelKey{t0}, Policy{})
	assert.Empty(t, result.Failed)

	var sendMedia, sendMediaGroup int
	for _, c := range client.Calls {
		if c == "SendMedia" {
			sendMedia++
		}
		if c == "SendMediaGroup" {
			sendMediaGroup++
		}
	}
	assert.Equal(t, 1, sendMedia, "a single-member album must be sent as a single, not a media group")
	assert.Equal(t, 0, sendMediaGroup)
}

func TestRender_RemoveCaptions(t *testing.T) {
	assert.Equal(t, "", Render(Policy{RemoveCaptions: true}, "hello", time.Now(), -100, 1))
}

func TestRender_TemplateSubstitution(t *testing.T) {
	policy := Policy{Template: "{original_caption} from {source_chat_id}/{source_message_id}"}
	out := Render(policy, "hi", time.Now(), -100999, 42)
	assert.Equal(t, "hi from -100999/42", out)
}

func TestRender_AttributionAppendedWhenFits(t *testing.T) {
	policy := Policy{Attribution: "forwarded by bot"}
	out := Render(policy, "hello", time.Now(), -100, 1)
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "forwarded by bot")
}

func TestRender_AttributionDroppedWhenTooLong(t *testing.T) {
	longCaption := make([]byte, 1020)
	for i := range longCaption {
		longCaption[i] = 'a'
	}
	policy := Policy{Attribution: "forwarded by bot"}
	out := Render(policy, string(longCaption), time.Now(), -100, 1)
	assert.Equal(t, string(longCaption), out)
}
