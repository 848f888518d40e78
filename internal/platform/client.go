// Package platform defines the capability the core depends on for all
// Telegram RPCs (spec §6, "Platform client (consumed)"). The core never
// imports gotd/td or gotgproto directly — every component takes a Client
// interface value so tests can substitute a fake (spec §9, "inject them as
// interface values"). The concrete adapter lives in platform/gotdclient.
package platform

import (
	"context"
	"io"
	"time"

	"tgforward/internal/model"
)

// ChatInfo is what the Capability Prober needs from a resolved chat.
type ChatInfo struct {
	Key                model.ChannelKey
	Title              string
	IsChannel          bool
	HasProtectedContent bool
	// AdminRights is non-nil when the chat is a channel and the account's
	// admin rights were queried; nil for non-channel chats where write
	// access is derived from plain membership/permissions instead.
	AdminRights *AdminRights
	CanSendToIt bool // derived from plain chat permissions for non-channel chats
}

// AdminRights mirrors the subset of Telegram's admin rights this module
// cares about.
type AdminRights struct {
	IsAdmin   bool
	CanPost   bool
	CanEdit   bool
}

// SendableMedia is one item to send or forward, tagged by MediaKind.
type SendableMedia struct {
	Descriptor model.MessageDescriptor
	FilePath   string // local path for upload; empty when forwarding/copying by reference
}

// SentMessage is the platform's result of a send/forward/copy call for a
// single message.
type SentMessage struct {
	RemoteMessageID int
}

// RateLimitError describes a FLOOD_WAIT signal; RetryAfter is the
// server-mandated wait. The gotdclient adapter does not return this type:
// it reports rate limits as *tgerr.Error values carrying RetryAfter.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string { return "rate limited" }

// AuthorizationError describes a session that is no longer valid. The
// gotdclient adapter does not return this type: it reports such errors as
// *tgerr.Error values of KindAuthorization.
type AuthorizationError struct {
	Cause error
}

func (e *AuthorizationError) Error() string { return "authorization invalid: " + e.Cause.Error() }
func (e *AuthorizationError) Unwrap() error { return e.Cause }

// Client is the platform capability consumed by every core component.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	// GetChat resolves identifier info (numeric ID, protected-content
	// flag, admin rights) for a channel the Resolver has already turned
	// into a ChannelKey.
	GetChat(ctx context.Context, key model.ChannelKey) (*ChatInfo, error)

	// GetMessages fetches specific message IDs from chat.
	GetMessages(ctx context.Context, chat model.ChannelKey, ids []int) ([]*model.MessageDescriptor, error)

	// GetChatHistory streams messages with IDs in [endID, startID] (both
	// inclusive; startID is the newer bound) by descending ID, batchSize
	// at a time, calling yield for each batch. yield returning false stops
	// iteration early.
	GetChatHistory(ctx context.Context, chat model.ChannelKey, startID, endID, batchSize int, yield func([]*model.MessageDescriptor) bool) error

	// GetMediaGroup fetches every message sharing anyID's album key.
	GetMediaGroup(ctx context.Context, chat model.ChannelKey, anyID int) ([]*model.MessageDescriptor, error)

	// DownloadMedia streams the message's media into w, returning the
	// number of bytes written.
	DownloadMedia(ctx context.Context, chat model.ChannelKey, msg *model.MessageDescriptor, w io.Writer) (int64, error)

	SendMessage(ctx context.Context, target model.ChannelKey, caption string, entities []model.CaptionEntity) (SentMessage, error)
	SendMedia(ctx context.Context, target model.ChannelKey, item SendableMedia, caption string, entities []model.CaptionEntity) (SentMessage, error)
	SendMediaGroup(ctx context.Context, target model.ChannelKey, items []SendableMedia, caption string, entities []model.CaptionEntity) ([]SentMessage, error)

	// CopyMessage/CopyMediaGroup replicate a message already sent to
	// fromTarget (at fromRemoteID) into toTarget via server-side copy,
	// without re-uploading bytes.
	CopyMessage(ctx context.Context, toTarget, fromTarget model.ChannelKey, fromRemoteID int) (SentMessage, error)
	CopyMediaGroup(ctx context.Context, toTarget, fromTarget model.ChannelKey, fromRemoteIDs []int) ([]SentMessage, error)

	// ForwardMessages forwards msgIDs from source to target preserving
	// attribution.
	ForwardMessages(ctx context.Context, target, source model.ChannelKey, msgIDs []int) ([]SentMessage, error)
}
