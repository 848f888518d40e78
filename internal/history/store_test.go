package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tgforward/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(DefaultPaths(dir), zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestMarkDownloaded_IdempotentSecondCall(t *testing.T) {
	s := openTestStore(t)
	source := model.ChannelKey{ID: -100111}

	assert.False(t, s.IsDownloaded(source, 42))
	require.NoError(t, s.MarkDownloaded(source, 42))
	assert.True(t, s.IsDownloaded(source, 42))

	// a second mark is a no-op, not a duplicate entry
	require.NoError(t, s.MarkDownloaded(source, 42))
	assert.Len(t, s.download.Channels[source.String()].DownloadedMessages, 1)
}

func TestMarkForwarded_ResumeNeverRedelivers(t *testing.T) {
	s := openTestStore(t)
	source := model.ChannelKey{ID: -100222}
	t1 := model.ChannelKey{ID: -100333}
	t2 := model.ChannelKey{ID: -100444}

	require.NoError(t, s.MarkForwarded(source, 7, []model.ChannelKey{t1}))
	targets := s.GetForwardTargets(source, 7)
	assert.True(t, targets[t1.String()])
	assert.False(t, targets[t2.String()])

	// simulates an interrupted-run resume: re-delivering to t1 and
	// newly delivering to t2 must not duplicate the t1 entry
	require.NoError(t, s.MarkForwarded(source, 7, []model.ChannelKey{t1, t2}))
	targets = s.GetForwardTargets(source, 7)
	assert.Len(t, targets, 2)
	assert.True(t, targets[t1.String()])
	assert.True(t, targets[t2.String()])
}

func TestMarkFileUploaded_RoundTripsRemoteIDs(t *testing.T) {
	s := openTestStore(t)
	target := model.ChannelKey{ID: -100555}
	path := filepath.Join(t.TempDir(), "123_45.jpg")

	assert.False(t, s.IsFileUploaded(path, target))
	require.NoError(t, s.MarkFileUploaded(path, target, []int{10, 11}, 2048, "photo"))
	assert.True(t, s.IsFileUploaded(path, target))

	ids, ok := s.UploadedRemoteIDs(path, target)
	require.True(t, ok)
	assert.Equal(t, []int{10, 11}, ids)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	paths := DefaultPaths(dir)
	source := model.ChannelKey{ID: -100666}

	s1, err := Open(paths, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s1.MarkDownloaded(source, 99))

	s2, err := Open(paths, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, s2.IsDownloaded(source, 99))
}

func TestRegisterAndResolveChannelID(t *testing.T) {
	s := openTestStore(t)
	_, ok := s.ResolveChannelID("mychannel")
	assert.False(t, ok)

	s.RegisterChannelID("mychannel", -100777)
	id, ok := s.ResolveChannelID("mychannel")
	require.True(t, ok)
	assert.Equal(t, int64(-100777), id)
}

func TestCleanup_RemovesOldEntriesOnly(t *testing.T) {
	s := openTestStore(t)
	source := model.ChannelKey{ID: -100888}
	require.NoError(t, s.MarkDownloaded(source, 1))

	removed, err := s.Cleanup(30)
	require.NoError(t, err)
	assert.Equal(t, 0, removed, "freshly written entries are within the retention window")
	assert.True(t, s.IsDownloaded(source, 1))
}
