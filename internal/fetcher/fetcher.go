// Package fetcher implements the Message Fetcher (spec §4.4): streams a
// source channel's history in batches, grouping album members and
// deduplicating across batch boundaries.
//
// Grounded on message_fetcher.py's MessageFetcher
// (original_source/tg_forwarder/downloader/message_fetcher.py), whose
// batch loop, processed-ID set, and media-group completion logic this
// package ports into the platform.Client streaming shape.
package fetcher

import (
	"context"

	"go.uber.org/zap"

	"tgforward/internal/model"
	"tgforward/internal/platform"
)

const defaultBatchSize = 10

// Batch is one yielded unit of work: either a completed album or a list
// of standalone messages, never both — callers branch on which is
// populated.
type Batch struct {
	Album    []*model.MessageDescriptor
	Singles  []*model.MessageDescriptor
	Progress float64 // 0..100, fraction of [startID,endID] processed so far
}

// Fetcher streams a channel's history, deduplicated and grouped.
type Fetcher struct {
	client    platform.Client
	batchSize int
	log       *zap.Logger

	processedMessages map[int]bool
	processedAlbums   map[string]bool
}

// New builds a Fetcher. batchSize <= 0 uses the default of 10.
func New(client platform.Client, log *zap.Logger, batchSize int) *Fetcher {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Fetcher{
		client:            client,
		batchSize:         batchSize,
		log:               log.Named("Fetcher"),
		processedMessages: map[int]bool{},
		processedAlbums:   map[string]bool{},
	}
}

// Stream walks [startID, endID] (endID == 0 means "up to latest") and
// invokes yield once per batch of grouped work. Returning false from
// yield stops the stream early.
func (f *Fetcher) Stream(ctx context.Context, source model.ChannelKey, startID, endID int, yield func(Batch) bool) error {
	if endID == 0 {
		latest, err := f.client.GetMessages(ctx, source, nil)
		if err != nil {
			return err
		}
		endID = startID
		if len(latest) > 0 {
			endID = latest[0].MessageID
		}
	}
	if endID < startID {
		startID, endID = endID, startID
	}
	total := endID - startID + 1

	processed := 0
	err := f.client.GetChatHistory(ctx, source, endID, startID, f.batchSize, func(msgs []*model.MessageDescriptor) bool {
		grouped := f.group(ctx, source, msgs)
		processed += len(msgs)
		progress := float64(processed) / float64(total) * 100

		for _, album := range grouped.albums {
			if !yield(Batch{Album: album, Progress: progress}) {
				return false
			}
		}
		if len(grouped.singles) > 0 {
			if !yield(Batch{Singles: grouped.singles, Progress: progress}) {
				return false
			}
		}
		return true
	})
	return err
}

type grouped struct {
	albums  [][]*model.MessageDescriptor
	singles []*model.MessageDescriptor
}

// group splits a raw batch into completed albums and standalone messages,
// deduplicating against messages and albums already seen in earlier
// batches (a message can recur when album members straddle a batch
// boundary).
func (f *Fetcher) group(ctx context.Context, source model.ChannelKey, msgs []*model.MessageDescriptor) grouped {
	var out grouped
	pending := map[string][]*model.MessageDescriptor{}

	for _, m := range msgs {
		if m == nil || f.processedMessages[m.MessageID] {
			continue
		}
		f.processedMessages[m.MessageID] = true

		if m.InAlbum() {
			if f.processedAlbums[m.AlbumKey] {
				continue
			}
			pending[m.AlbumKey] = append(pending[m.AlbumKey], m)
		} else {
			out.singles = append(out.singles, m)
		}
	}

	for key, members := range pending {
		if len(members) == 0 {
			continue
		}
		complete, err := f.client.GetMediaGroup(ctx, source, members[0].MessageID)
		if err != nil || len(complete) == 0 {
			if err != nil {
				f.log.Warn("failed to fetch complete media group, treating members as singles",
					zap.String("album", key), zap.Error(err))
			}
			out.singles = append(out.singles, members...)
			continue
		}
		f.processedAlbums[key] = true
		out.albums = append(out.albums, complete)
	}

	return out
}
