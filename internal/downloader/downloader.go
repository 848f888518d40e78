// Package downloader implements the Media Downloader (spec §4.5): fetches
// media for a MessageDescriptor to local storage, one file at a time per
// source, with retry and a metadata side-file the Reassembler consumes.
//
// Grounded on media_downloader.py
// (original_source/tg_forwarder/downloader/media_downloader.py): the
// serial-by-default semaphore, retry/backoff policy, and the metadata
// side-file pattern (message_metadata.json) are ported here as a Go
// struct persisted through the same atomic-rename JSON helper the
// History Store uses.
package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"tgforward/internal/history"
	"tgforward/internal/model"
	"tgforward/internal/platform"
	"tgforward/internal/tgerr"
)

// Options configures the downloader.
type Options struct {
	TempDir            string
	RetryCount         int
	RetryDelay         time.Duration
	MaxRateLimitWait   time.Duration
	Concurrency        int // default and recommended value is 1
}

// DefaultOptions matches the spec's stated defaults.
func DefaultOptions(tempDir string) Options {
	return Options{
		TempDir:          tempDir,
		RetryCount:       3,
		RetryDelay:       5 * time.Second,
		MaxRateLimitWait: 300 * time.Second,
		Concurrency:      1,
	}
}

// Result is the outcome of a download attempt.
type Result struct {
	Artifact model.LocalArtifact
	Skipped  bool
	Err      error
}

// Downloader fetches media to local storage, one source at a time.
type Downloader struct {
	client   platform.Client
	store    *history.Store
	metadata *MetadataStore
	opts     Options
	log      *zap.Logger
	sem      chan struct{}
}

// New builds a Downloader bound to client, store, and a metadata
// side-file rooted at opts.TempDir.
func New(client platform.Client, store *history.Store, opts Options, log *zap.Logger) (*Downloader, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	meta, err := OpenMetadataStore(opts.TempDir)
	if err != nil {
		return nil, err
	}
	return &Downloader{
		client:   client,
		store:    store,
		metadata: meta,
		opts:     opts,
		log:      log.Named("Downloader"),
		sem:      make(chan struct{}, opts.Concurrency),
	}, nil
}

var nonWord = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ArtifactPath synthesizes the deterministic file name from spec §3:
// {chat-id}_{msg-id}[_group_{album-key}][_{sanitized-original}].{ext}
func ArtifactPath(dir string, m *model.MessageDescriptor) string {
	name := fmt.Sprintf("%s_%d", m.Source.String(), m.MessageID)
	if m.AlbumKey != "" {
		name += "_group_" + nonWord.ReplaceAllString(m.AlbumKey, "_")
	}
	if m.FileName != "" {
		base := nonWord.ReplaceAllString(stripExt(m.FileName), "_")
		if base != "" {
			name += "_" + base
		}
	}
	ext := extFor(m)
	return filepath.Join(dir, name+ext)
}

func stripExt(name string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)]
}

func extFor(m *model.MessageDescriptor) string {
	if ext := filepath.Ext(m.FileName); ext != "" {
		return ext
	}
	switch m.Kind {
	case model.KindPhoto:
		return ".jpg"
	case model.KindVideo:
		return ".mp4"
	case model.KindAudio:
		return ".mp3"
	case model.KindVoice:
		return ".ogg"
	case model.KindAnimation:
		return ".mp4"
	case model.KindSticker:
		return ".webp"
	default:
		return ".bin"
	}
}

// DownloadOne fetches a single message's media, honoring the pre-check,
// retry, and zero-byte-guard rules of spec §4.5.
func (d *Downloader) DownloadOne(ctx context.Context, m *model.MessageDescriptor) Result {
	d.sem <- struct{}{}
	defer func() { <-d.sem }()

	path := ArtifactPath(d.opts.TempDir, m)

	if d.store.IsDownloaded(m.Source, m.MessageID) {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			return Result{Skipped: true, Artifact: model.LocalArtifact{Path: path, Size: info.Size(), FileName: filepath.Base(path), Message: *m, Caption: m.Caption}}
		}
	}

	if err := os.MkdirAll(d.opts.TempDir, 0o755); err != nil {
		return Result{Err: tgerr.New(tgerr.KindIO, err)}
	}

	var lastErr error
	for attempt := 0; attempt <= d.opts.RetryCount; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * d.opts.RetryDelay
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return Result{Err: ctx.Err()}
			}
		}

		size, err := d.attempt(ctx, m, path)
		if err == nil && size > 0 {
			if markErr := d.store.MarkDownloaded(m.Source, m.MessageID); markErr != nil {
				d.log.Warn("failed to persist download marker", zap.Error(markErr))
			}
			if metaErr := d.metadata.Put(*m); metaErr != nil {
				d.log.Warn("failed to persist message metadata", zap.Error(metaErr))
			}
			return Result{Artifact: model.LocalArtifact{Path: path, Size: size, FileName: filepath.Base(path), Message: *m, Caption: m.Caption}}
		}
		if err == nil {
			// zero-byte guard: delete and retry
			os.Remove(path)
			lastErr = fmt.Errorf("downloaded zero-byte file for message %d", m.MessageID)
			continue
		}
		if wait, ok := tgerr.AsRateLimit(err); ok {
			if wait > d.opts.MaxRateLimitWait {
				return Result{Err: err}
			}
			d.log.Info("rate limited during download, sleeping", zap.Duration("wait", wait))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return Result{Err: ctx.Err()}
			}
			attempt-- // does not consume a retry attempt
			continue
		}
		lastErr = err
		d.log.Warn("download attempt failed", zap.Int("attempt", attempt), zap.Int("message_id", m.MessageID), zap.Error(err))
	}
	return Result{Err: lastErr}
}

func (d *Downloader) attempt(ctx context.Context, m *model.MessageDescriptor, path string) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, tgerr.New(tgerr.KindIO, err)
	}
	defer f.Close()

	n, err := d.client.DownloadMedia(ctx, m.Source, m, f)
	if err != nil {
		return 0, err
	}
	if err := f.Sync(); err != nil {
		return 0, tgerr.New(tgerr.KindIO, err)
	}
	return n, nil
}

// DownloadBatch downloads every descriptor, partitioning the outcomes the
// way spec §4.5's download_batch contract specifies.
func (d *Downloader) DownloadBatch(ctx context.Context, msgs []*model.MessageDescriptor) (success []model.LocalArtifact, failed []*model.MessageDescriptor, skipped []model.LocalArtifact) {
	for _, m := range msgs {
		res := d.DownloadOne(ctx, m)
		switch {
		case res.Err != nil:
			failed = append(failed, m)
		case res.Skipped:
			skipped = append(skipped, res.Artifact)
		default:
			success = append(success, res.Artifact)
		}
	}
	return success, failed, skipped
}

// metadataKey reproduces the message_metadata.json side-file key so a
// restarted Reassembler can recognize artifacts written by a prior run.
func metadataKey(source model.ChannelKey, msgID int) string {
	return source.String() + ":" + strconv.Itoa(msgID)
}

// CleanupTemp sweeps opts.TempDir for artifacts older than maxAge,
// removing everything the History Store doesn't still consider uploaded
// (history.Store.CleanupTempArtifacts), matching spec §4.3's "disk
// temp-file cleanup... beyond the age policy stated" — explicit-call-only,
// never run automatically.
func (d *Downloader) CleanupTemp(maxAge time.Duration) (removed int, err error) {
	entries, err := os.ReadDir(d.opts.TempDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	var candidates []string
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == "message_metadata.json" {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		candidates = append(candidates, filepath.Join(d.opts.TempDir, entry.Name()))
	}

	for _, path := range d.store.CleanupTempArtifacts(candidates) {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			d.log.Warn("failed to remove stale temp artifact", zap.String("path", path), zap.Error(err))
			continue
		}
		if source, msgID, ok := parseArtifactName(filepath.Base(path)); ok {
			if delErr := d.metadata.Delete(source, msgID); delErr != nil {
				d.log.Warn("failed to prune metadata for stale artifact", zap.String("path", path), zap.Error(delErr))
			}
		}
		removed++
	}
	return removed, nil
}

var artifactNamePattern = regexp.MustCompile(`^(-?\d+)_(\d+)`)

// parseArtifactName recovers the (source, msgID) pair ArtifactPath encoded
// into a file name, so CleanupTemp can prune the matching metadata record.
func parseArtifactName(name string) (model.ChannelKey, int, bool) {
	m := artifactNamePattern.FindStringSubmatch(name)
	if m == nil {
		return model.ChannelKey{}, 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return model.ChannelKey{}, 0, false
	}
	msgID, err := strconv.Atoi(m[2])
	if err != nil {
		return model.ChannelKey{}, 0, false
	}
	return model.ChannelKey{ID: id}, msgID, true
}
