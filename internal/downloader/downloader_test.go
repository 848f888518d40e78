package downloader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tgforward/internal/history"
	"tgforward/internal/model"
	"tgforward/internal/platform/fake"
)

func openTestStore(t *testing.T) *history.Store {
	t.Helper()
	s, err := history.Open(history.DefaultPaths(t.TempDir()), zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestDownloadOne_WritesFileAndMarksHistory(t *testing.T) {
	client := fake.New()
	source := model.ChannelKey{ID: -100111}
	msg := &model.MessageDescriptor{Source: source, MessageID: 5, Kind: model.KindPhoto, FileName: "pic.jpg"}
	client.AddMessage(source, msg, []byte("jpeg-bytes"))

	store := openTestStore(t)
	d, err := New(client, store, DefaultOptions(t.TempDir()), zap.NewNop())
	require.NoError(t, err)

	res := d.DownloadOne(context.Background(), msg)
	require.NoError(t, res.Err)
	assert.False(t, res.Skipped)
	assert.True(t, res.Artifact.Valid())
	assert.True(t, store.IsDownloaded(source, 5))

	data, err := os.ReadFile(res.Artifact.Path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
}

func TestDownloadOne_SkipsWhenAlreadyDownloaded(t *testing.T) {
	client := fake.New()
	source := model.ChannelKey{ID: -100222}
	msg := &model.MessageDescriptor{Source: source, MessageID: 9, Kind: model.KindDocument, FileName: "doc.pdf"}
	client.AddMessage(source, msg, []byte("pdf-bytes"))

	store := openTestStore(t)
	opts := DefaultOptions(t.TempDir())
	d, err := New(client, store, opts, zap.NewNop())
	require.NoError(t, err)

	first := d.DownloadOne(context.Background(), msg)
	require.NoError(t, first.Err)

	second := d.DownloadOne(context.Background(), msg)
	require.NoError(t, second.Err)
	assert.True(t, second.Skipped)
}

func TestArtifactPath_EmbedsChatMsgAndAlbum(t *testing.T) {
	source := model.ChannelKey{ID: -100333}
	m := &model.MessageDescriptor{Source: source, MessageID: 12, AlbumKey: "grp-1", FileName: "orig name.mp4", Kind: model.KindVideo}
	path := ArtifactPath("/tmp/x", m)
	base := filepath.Base(path)
	assert.Contains(t, base, "-100333_12")
	assert.Contains(t, base, "group_grp-1")
	assert.Contains(t, base, "orig_name")
}

func TestMetadataStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	source := model.ChannelKey{ID: -100444}

	s1, err := OpenMetadataStore(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Put(model.MessageDescriptor{Source: source, MessageID: 3, AlbumKey: "g1", Caption: "hello"}))

	s2, err := OpenMetadataStore(dir)
	require.NoError(t, err)
	m, ok := s2.Get(source, 3)
	require.True(t, ok)
	assert.Equal(t, "hello", m.Caption)

	byAlbum := s2.ByAlbum("g1")
	require.Len(t, byAlbum, 1)
}

func TestCleanupTemp_RemovesStaleUnuploadedArtifactsOnly(t *testing.T) {
	client := fake.New()
	source := model.ChannelKey{ID: -100555}
	staleMsg := &model.MessageDescriptor{Source: source, MessageID: 7, Kind: model.KindPhoto, FileName: "stale.jpg"}
	uploadedMsg := &model.MessageDescriptor{Source: source, MessageID: 8, Kind: model.KindPhoto, FileName: "kept.jpg"}
	client.AddMessage(source, staleMsg, []byte("stale-bytes"))
	client.AddMessage(source, uploadedMsg, []byte("kept-bytes"))

	store := openTestStore(t)
	tempDir := t.TempDir()
	d, err := New(client, store, DefaultOptions(tempDir), zap.NewNop())
	require.NoError(t, err)

	staleRes := d.DownloadOne(context.Background(), staleMsg)
	require.NoError(t, staleRes.Err)
	uploadedRes := d.DownloadOne(context.Background(), uploadedMsg)
	require.NoError(t, uploadedRes.Err)

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(staleRes.Artifact.Path, old, old))
	require.NoError(t, os.Chtimes(uploadedRes.Artifact.Path, old, old))

	require.NoError(t, store.MarkFileUploaded(uploadedRes.Artifact.Path, model.ChannelKey{ID: -100999}, []int{1}, uploadedRes.Artifact.Size, string(model.KindPhoto)))

	removed, err := d.CleanupTemp(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(staleRes.Artifact.Path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(uploadedRes.Artifact.Path)
	assert.NoError(t, err, "uploaded artifact should survive cleanup")

	_, stillThere := d.metadata.Get(source, 7)
	assert.False(t, stillThere, "metadata for the removed artifact should be pruned")
}

func TestCleanupTemp_MissingDirectoryIsNotAnError(t *testing.T) {
	store := openTestStore(t)
	d, err := New(fake.New(), store, DefaultOptions(filepath.Join(t.TempDir(), "does-not-exist")), zap.NewNop())
	require.NoError(t, err)

	removed, err := d.CleanupTemp(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}
