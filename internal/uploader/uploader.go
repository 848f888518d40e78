// Package uploader implements the Media Uploader (spec §4.7):
// first-target-then-copy delivery of downloaded artifacts, with
// UploadRecord-backed idempotence and the caption policy of §4.7.
//
// Grounded on media_uploader.py and message_sender.py
// (original_source/tg_forwarder/uploader/), whose
// send-once-then-forward-to-rest strategy and per-target history check
// this package ports onto platform.Client's SendMedia/CopyMessage
// primitives.
package uploader

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"tgforward/internal/history"
	"tgforward/internal/model"
	"tgforward/internal/platform"
	"tgforward/internal/resolver"
)

// ItemResult is the per-artifact (or per-album) outcome.
type ItemResult struct {
	Path      string // canonical key under which UploadRecord tracks this item
	Succeeded []model.ChannelKey
	Failed    map[model.ChannelKey]error
}

// Stats aggregates an UploadBatch call.
type Stats struct {
	Items []ItemResult
}

// Uploader delivers assembled artifacts to a set of targets.
type Uploader struct {
	client   platform.Client
	store    *history.Store
	resolver *resolver.Resolver
	log      *zap.Logger
}

// New builds an Uploader.
func New(client platform.Client, store *history.Store, resolver *resolver.Resolver, log *zap.Logger) *Uploader {
	return &Uploader{client: client, store: store, resolver: resolver, log: log.Named("Uploader")}
}

// resolveTarget turns an invite-URL or username target into its numeric
// key via the Resolver, per §4.7's private-link handling.
func (u *Uploader) resolveTarget(ctx context.Context, target model.ChannelKey) (model.ChannelKey, error) {
	if target.IsNumeric() {
		return target, nil
	}
	ref, err := u.resolver.Resolve(ctx, target.Username)
	if err != nil {
		return target, err
	}
	return ref.Key, nil
}

// artifactKey is the UploadRecord key for a single artifact: its local
// file path. For an album, the first member's path stands in for the
// whole group since the group is always sent/copied atomically.
func artifactKey(artifacts []model.LocalArtifact) string {
	return artifacts[0].Path
}

// UploadSingle delivers one artifact to targets using first-target-then-copy.
func (u *Uploader) UploadSingle(ctx context.Context, artifact model.LocalArtifact, targets []model.ChannelKey, policy Policy) ItemResult {
	return u.uploadGroup(ctx, []model.LocalArtifact{artifact}, targets, policy, false)
}

// UploadAlbum delivers an album's artifacts to targets atomically via
// SendMediaGroup, falling back to per-item sends on failure.
func (u *Uploader) UploadAlbum(ctx context.Context, artifacts []model.LocalArtifact, targets []model.ChannelKey, policy Policy) ItemResult {
	return u.uploadGroup(ctx, artifacts, targets, policy, true)
}

func (u *Uploader) uploadGroup(ctx context.Context, artifacts []model.LocalArtifact, targets []model.ChannelKey, policy Policy, isAlbum bool) ItemResult {
	result := ItemResult{Path: artifactKey(artifacts), Failed: map[model.ChannelKey]error{}}
	if len(targets) == 0 || len(artifacts) == 0 {
		return result
	}

	target0 := targets[0]
	resolved0, err := u.resolveTarget(ctx, target0)
	if err != nil {
		result.Failed[target0] = err
		return result
	}

	if u.store.IsFileUploaded(result.Path, resolved0) {
		result.Succeeded = append(result.Succeeded, resolved0)
	} else {
		remoteIDs, sendErr := u.sendFirst(ctx, resolved0, artifacts, policy, isAlbum)
		if sendErr != nil {
			result.Failed[target0] = sendErr
			return result // cannot copy to remaining targets without a target₀ reference
		}
		if markErr := u.store.MarkFileUploaded(result.Path, resolved0, remoteIDs, sumSize(artifacts), string(artifacts[0].Message.Kind)); markErr != nil {
			u.log.Warn("failed to persist upload record", zap.Error(markErr))
		}
		result.Succeeded = append(result.Succeeded, resolved0)
	}

	remoteIDs, _ := u.store.UploadedRemoteIDs(result.Path, resolved0)

	for _, target := range targets[1:] {
		resolved, err := u.resolveTarget(ctx, target)
		if err != nil {
			result.Failed[target] = err
			continue
		}
		if u.store.IsFileUploaded(result.Path, resolved) {
			result.Succeeded = append(result.Succeeded, resolved)
			continue
		}
		copiedIDs, err := u.copyTo(ctx, resolved, resolved0, remoteIDs, isAlbum)
		if err != nil {
			result.Failed[target] = err
			continue
		}
		if markErr := u.store.MarkFileUploaded(result.Path, resolved, copiedIDs, sumSize(artifacts), string(artifacts[0].Message.Kind)); markErr != nil {
			u.log.Warn("failed to persist upload record", zap.Error(markErr))
		}
		result.Succeeded = append(result.Succeeded, resolved)
	}

	return result
}

// UploadText delivers a message with no downloadable media (KindText) to
// targets via SendMessage/CopyMessage rather than the file-upload path,
// still tracked through UploadRecord so resumed runs don't redeliver it.
func (u *Uploader) UploadText(ctx context.Context, msg *model.MessageDescriptor, targets []model.ChannelKey, policy Policy) ItemResult {
	key := msg.Source.String() + ":" + strconv.Itoa(msg.MessageID)
	result := ItemResult{Path: key, Failed: map[model.ChannelKey]error{}}
	if len(targets) == 0 {
		return result
	}

	target0 := targets[0]
	resolved0, err := u.resolveTarget(ctx, target0)
	if err != nil {
		result.Failed[target0] = err
		return result
	}

	caption := Render(policy, msg.Caption, msg.Date, msg.Source.ID, msg.MessageID)
	if u.store.IsFileUploaded(key, resolved0) {
		result.Succeeded = append(result.Succeeded, resolved0)
	} else {
		sent, err := u.client.SendMessage(ctx, resolved0, caption, msg.Entities)
		if err != nil {
			result.Failed[target0] = err
			return result
		}
		if markErr := u.store.MarkFileUploaded(key, resolved0, []int{sent.RemoteMessageID}, 0, string(model.KindText)); markErr != nil {
			u.log.Warn("failed to persist upload record", zap.Error(markErr))
		}
		result.Succeeded = append(result.Succeeded, resolved0)
	}

	remoteIDs, _ := u.store.UploadedRemoteIDs(key, resolved0)
	var fromID int
	if len(remoteIDs) > 0 {
		fromID = remoteIDs[0]
	}

	for _, target := range targets[1:] {
		resolved, err := u.resolveTarget(ctx, target)
		if err != nil {
			result.Failed[target] = err
			continue
		}
		if u.store.IsFileUploaded(key, resolved) {
			result.Succeeded = append(result.Succeeded, resolved)
			continue
		}
		sent, err := u.client.CopyMessage(ctx, resolved, resolved0, fromID)
		if err != nil {
			result.Failed[target] = err
			continue
		}
		if markErr := u.store.MarkFileUploaded(key, resolved, []int{sent.RemoteMessageID}, 0, string(model.KindText)); markErr != nil {
			u.log.Warn("failed to persist upload record", zap.Error(markErr))
		}
		result.Succeeded = append(result.Succeeded, resolved)
	}
	return result
}

func (u *Uploader) sendFirst(ctx context.Context, target model.ChannelKey, artifacts []model.LocalArtifact, policy Policy, isAlbum bool) ([]int, error) {
	caption := renderFor(policy, artifacts[0])

	if !isAlbum || len(artifacts) == 1 {
		sent, err := u.client.SendMedia(ctx, target, platform.SendableMedia{Descriptor: artifacts[0].Message, FilePath: artifacts[0].Path}, caption, artifacts[0].Message.Entities)
		if err != nil {
			return nil, err
		}
		return []int{sent.RemoteMessageID}, nil
	}

	items := make([]platform.SendableMedia, len(artifacts))
	for i, a := range artifacts {
		items[i] = platform.SendableMedia{Descriptor: a.Message, FilePath: a.Path}
	}
	sent, err := u.client.SendMediaGroup(ctx, target, items, caption, artifacts[0].Message.Entities)
	if err != nil {
		// fall back to per-item single sends, recording partial success
		var ids []int
		var firstErr error
		for _, a := range artifacts {
			itemCaption := renderFor(policy, a)
			s, sendErr := u.client.SendMedia(ctx, target, platform.SendableMedia{Descriptor: a.Message, FilePath: a.Path}, itemCaption, a.Message.Entities)
			if sendErr != nil {
				if firstErr == nil {
					firstErr = sendErr
				}
				continue
			}
			ids = append(ids, s.RemoteMessageID)
		}
		if len(ids) == 0 {
			return nil, firstErr
		}
		return ids, nil
	}
	ids := make([]int, len(sent))
	for i, s := range sent {
		ids[i] = s.RemoteMessageID
	}
	return ids, nil
}

func (u *Uploader) copyTo(ctx context.Context, target, source model.ChannelKey, fromRemoteIDs []int, isAlbum bool) ([]int, error) {
	if !isAlbum || len(fromRemoteIDs) == 1 {
		sent, err := u.client.CopyMessage(ctx, target, source, fromRemoteIDs[0])
		if err != nil {
			return nil, err
		}
		return []int{sent.RemoteMessageID}, nil
	}
	sent, err := u.client.CopyMediaGroup(ctx, target, source, fromRemoteIDs)
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(sent))
	for i, s := range sent {
		ids[i] = s.RemoteMessageID
	}
	return ids, nil
}

func renderFor(policy Policy, artifact model.LocalArtifact) string {
	return Render(policy, artifact.Caption, artifact.Message.Date, artifact.Message.Source.ID, artifact.Message.MessageID)
}

func sumSize(artifacts []model.LocalArtifact) int64 {
	var total int64
	for _, a := range artifacts {
		total += a.Size
	}
	return total
}
