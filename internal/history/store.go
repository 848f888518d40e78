package history

import (
	"context"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"tgforward/internal/model"
)

// Kind distinguishes the two channel-keyed relations (download, forward);
// upload is keyed by file path instead and has its own methods.
type Kind string

const (
	KindDownload Kind = "download"
	KindForward  Kind = "forward"
)

// Paths names the three JSON documents on disk (spec §6).
type Paths struct {
	DownloadHistory string
	UploadHistory   string
	ForwardHistory  string
}

// DefaultPaths returns the three conventional file names rooted at dir.
func DefaultPaths(dir string) Paths {
	return Paths{
		DownloadHistory: filepath.Join(dir, "download_history.json"),
		UploadHistory:   filepath.Join(dir, "upload_history.json"),
		ForwardHistory:  filepath.Join(dir, "forward_history.json"),
	}
}

// Store is the single owning value for the three history documents,
// guarded by one exclusive-writer lock (spec §5, "the history store is
// the only shared mutable resource").
type Store struct {
	mu    sync.RWMutex
	paths Paths
	log   *zap.Logger

	download *DownloadDocument
	upload   *UploadDocument
	forward  *ForwardDocument

	channelIDs map[string]int64 // username/invite-key -> numeric id, spans download+forward docs

	stopAutoSave chan struct{}
	autoSaveDone chan struct{}
}

// Open loads (or initializes) the three documents from paths.
func Open(paths Paths, log *zap.Logger) (*Store, error) {
	s := &Store{
		paths:      paths,
		log:        log.Named("History"),
		download:   newDownloadDocument(),
		upload:     newUploadDocument(),
		forward:    newForwardDocument(),
		channelIDs: map[string]int64{},
	}
	if err := loadJSON(paths.DownloadHistory, s.download); err != nil {
		return nil, err
	}
	if s.download.Channels == nil {
		s.download.Channels = map[string]*DownloadChannelRecord{}
	}
	if err := loadJSON(paths.UploadHistory, s.upload); err != nil {
		return nil, err
	}
	if s.upload.Files == nil {
		s.upload.Files = map[string]*UploadFileRecord{}
	}
	if err := loadJSON(paths.ForwardHistory, s.forward); err != nil {
		return nil, err
	}
	if s.forward.Channels == nil {
		s.forward.Channels = map[string]*ForwardChannelRecord{}
	}

	for key, rec := range s.download.Channels {
		s.channelIDs[key] = rec.ChannelID
	}
	for key, rec := range s.forward.Channels {
		s.channelIDs[key] = rec.ChannelID
	}
	return s, nil
}

// StartAutoSave launches the periodic background flush noted in spec §9
// ("Auto-save of history should be a background task launched at
// construction and cancelled at teardown"). Every individual mark is
// already durable synchronously (see markDownloadLocked etc.); this is a
// defensive second flush on a timer, harmless if it finds nothing dirty.
func (s *Store) StartAutoSave(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	s.stopAutoSave = make(chan struct{})
	s.autoSaveDone = make(chan struct{})
	go func() {
		defer close(s.autoSaveDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopAutoSave:
				return
			case <-ticker.C:
				if err := s.flushAll(); err != nil {
					s.log.Warn("auto-save flush failed", zap.Error(err))
				}
			}
		}
	}()
}

// Close stops the auto-save loop (if running) and performs a final flush,
// bounded by the 5-second drain window from spec §5.
func (s *Store) Close() error {
	if s.stopAutoSave != nil {
		close(s.stopAutoSave)
		select {
		case <-s.autoSaveDone:
		case <-time.After(5 * time.Second):
		}
	}
	return s.flushAll()
}

func (s *Store) flushAll() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := saveJSON(s.paths.DownloadHistory, s.download); err != nil {
		return err
	}
	if err := saveJSON(s.paths.UploadHistory, s.upload); err != nil {
		return err
	}
	return saveJSON(s.paths.ForwardHistory, s.forward)
}

func channelKey(k model.ChannelKey) string { return k.String() }

// IsDownloaded reports whether (source, msgID) has a DownloadRecord
// marker.
func (s *Store) IsDownloaded(source model.ChannelKey, msgID int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.download.Channels[channelKey(source)]
	if !ok {
		return false
	}
	for _, id := range rec.DownloadedMessages {
		if id == msgID {
			return true
		}
	}
	return false
}

// MarkDownloaded records (source, msgID) as downloaded, durably, before
// returning (spec §4.3 invariant).
func (s *Store) MarkDownloaded(source model.ChannelKey, msgID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := channelKey(source)
	rec, ok := s.download.Channels[key]
	if !ok {
		rec = &DownloadChannelRecord{ChannelID: source.ID}
		s.download.Channels[key] = rec
	}
	for _, id := range rec.DownloadedMessages {
		if id == msgID {
			return nil // already marked, idempotent no-op
		}
	}
	rec.DownloadedMessages = append(rec.DownloadedMessages, msgID)
	s.download.LastUpdated = time.Now()
	return saveJSON(s.paths.DownloadHistory, s.download)
}

// GetForwardTargets returns the set of targets already delivered for
// (source, msgID) — the idempotence anchor the Engine consults before any
// per-target attempt (spec §3 ForwardRecord).
func (s *Store) GetForwardTargets(source model.ChannelKey, msgID int) map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]bool{}
	rec, ok := s.forward.Channels[channelKey(source)]
	if !ok {
		return out
	}
	for _, t := range rec.ForwardedMessages[strconv.Itoa(msgID)] {
		out[t] = true
	}
	return out
}

// MarkForwarded adds targets to the ForwardRecord for (source, msgID).
// A second call with a target already present is a no-op, satisfying the
// at-most-once invariant of spec §8.
func (s *Store) MarkForwarded(source model.ChannelKey, msgID int, targets []model.ChannelKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := channelKey(source)
	rec, ok := s.forward.Channels[key]
	if !ok {
		rec = &ForwardChannelRecord{ChannelID: source.ID, ForwardedMessages: map[string][]string{}}
		s.forward.Channels[key] = rec
	}
	if rec.ForwardedMessages == nil {
		rec.ForwardedMessages = map[string][]string{}
	}
	msgKey := strconv.Itoa(msgID)
	existing := rec.ForwardedMessages[msgKey]
	existingSet := map[string]bool{}
	for _, t := range existing {
		existingSet[t] = true
	}
	for _, t := range targets {
		tk := channelKey(t)
		if !existingSet[tk] {
			existing = append(existing, tk)
			existingSet[tk] = true
		}
	}
	rec.ForwardedMessages[msgKey] = existing
	s.forward.LastUpdated = time.Now()
	return saveJSON(s.paths.ForwardHistory, s.forward)
}

// IsFileUploaded reports whether path has an UploadRecord entry binding it
// to target.
func (s *Store) IsFileUploaded(path string, target model.ChannelKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.upload.Files[path]
	if !ok {
		return false
	}
	tk := channelKey(target)
	for _, t := range rec.UploadedTo {
		if t == tk {
			return true
		}
	}
	return false
}

// MarkFileUploaded binds path to target with the platform-assigned
// remoteIDs, durably (spec §3 UploadRecord, §4.7).
func (s *Store) MarkFileUploaded(path string, target model.ChannelKey, remoteIDs []int, fileSize int64, mediaType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.upload.Files[path]
	if !ok {
		rec = &UploadFileRecord{
			RemoteIDs:  map[string][]int{},
			UploadTime: time.Now(),
			FileSize:   fileSize,
			MediaType:  mediaType,
		}
		s.upload.Files[path] = rec
	}
	tk := channelKey(target)
	found := false
	for _, t := range rec.UploadedTo {
		if t == tk {
			found = true
			break
		}
	}
	if !found {
		rec.UploadedTo = append(rec.UploadedTo, tk)
	}
	if rec.RemoteIDs == nil {
		rec.RemoteIDs = map[string][]int{}
	}
	rec.RemoteIDs[tk] = remoteIDs
	s.upload.LastUpdated = time.Now()
	return saveJSON(s.paths.UploadHistory, s.upload)
}

// UploadedRemoteIDs returns the remote message IDs previously recorded
// for (path, target), used to drive CopyMessage/CopyMediaGroup against
// the canonical target₀ copy.
func (s *Store) UploadedRemoteIDs(path string, target model.ChannelKey) ([]int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.upload.Files[path]
	if !ok {
		return nil, false
	}
	ids, ok := rec.RemoteIDs[channelKey(target)]
	return ids, ok
}

// RegisterChannelID records the numeric ID learned for a channel under
// name (supplemented feature, ported from history_tracker.py
// register_channel_id/get_channel_id). The name-to-ID map lives in
// memory; it survives a restart only where name already keys a download
// or forward record, whose channel_id is updated here and saved with the
// next flush.
func (s *Store) RegisterChannelID(name string, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelIDs[name] = id
	if rec, ok := s.download.Channels[name]; ok {
		rec.ChannelID = id
	}
	if rec, ok := s.forward.Channels[name]; ok {
		rec.ChannelID = id
	}
}

// ResolveChannelID looks up a previously registered numeric ID for name.
func (s *Store) ResolveChannelID(name string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.channelIDs[name]
	return id, ok
}
