// Package model defines the core data entities shared across the
// forwarding engine and the download-upload pipeline: channel references,
// capability records, message descriptors, and the on-disk artifacts they
// describe.
package model

import (
	"strconv"
	"time"
)

// ChannelKey is the Resolver's canonical identifier for a channel: an
// int64 when the platform has assigned a numeric ID, or a normalized
// string (bare username, or an invite URL) otherwise.
type ChannelKey struct {
	ID       int64
	Username string
}

// IsNumeric reports whether this key was resolved to a platform-assigned
// numeric ID.
func (k ChannelKey) IsNumeric() bool {
	return k.ID != 0
}

// String renders the canonical key the same way regardless of which form
// it carries, for use as a map key and in log fields.
func (k ChannelKey) String() string {
	if k.IsNumeric() {
		return strconv.FormatInt(k.ID, 10)
	}
	return k.Username
}

// ChannelRef is a user-supplied channel identifier together with its
// resolved canonical key and a human-friendly display form.
type ChannelRef struct {
	Input       string
	Key         ChannelKey
	Display     string
	EmbeddedMsg int // 0 when no message id was embedded in the input
}

// CapabilityRecord captures what the account can do in a channel, cached
// with a TTL by the Capability Prober.
type CapabilityRecord struct {
	Readable       bool
	Writable       bool
	ForwardAllowed bool
	FetchedAt      time.Time
}

// Expired reports whether the record is older than ttl as of now.
func (c CapabilityRecord) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(c.FetchedAt) > ttl
}

// MediaKind tags the several Telegram message kinds as a closed set,
// dispatched on rather than branched via duck typing.
type MediaKind string

const (
	KindText      MediaKind = "text"
	KindPhoto     MediaKind = "photo"
	KindVideo     MediaKind = "video"
	KindDocument  MediaKind = "document"
	KindAudio     MediaKind = "audio"
	KindAnimation MediaKind = "animation"
	KindVoice     MediaKind = "voice"
	KindSticker   MediaKind = "sticker"
)

// IsMedia reports whether the kind carries a downloadable file.
func (k MediaKind) IsMedia() bool {
	return k != KindText
}

// CaptionEntity is a formatting span over a caption, carried through
// verbatim from the source message.
type CaptionEntity struct {
	Type   string
	Offset int
	Length int
}

// MessageDescriptor identifies a concrete message and everything the
// pipeline needs to download, reassemble, and upload it.
type MessageDescriptor struct {
	Source    ChannelKey
	MessageID int
	Kind      MediaKind
	AlbumKey  string // empty when the message is not part of an album
	Caption   string
	Entities  []CaptionEntity
	Date      time.Time

	// Kind-specific attributes; zero-valued when not applicable.
	Width    int
	Height   int
	Duration int
	FileName string
	MimeType string
	Size     int64
}

// InAlbum reports whether the message belongs to an album.
func (m MessageDescriptor) InAlbum() bool {
	return m.AlbumKey != ""
}

// LocalArtifact is a successfully downloaded file for a MessageDescriptor.
type LocalArtifact struct {
	Path      string
	Size      int64
	FileName  string
	Message   MessageDescriptor
	Caption   string // caption assigned by the Reassembler, may differ from Message.Caption
}

// Valid reports the §3 invariant: a file on disk with non-zero size.
func (a LocalArtifact) Valid() bool {
	return a.Size > 0 && a.Path != ""
}

// DeliveryMode selects between the two ways the engine can get a message
// to a target.
type DeliveryMode string

const (
	ModeDirectForward DeliveryMode = "direct_forward"
	ModeDownloadUpload DeliveryMode = "download_upload"
)

// ForwardPair is one (source, targets) configuration entry.
type ForwardPair struct {
	Source  string
	Targets []string
}
