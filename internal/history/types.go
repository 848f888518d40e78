// Package history implements the History Store (spec §4.3): the durable
// record of download/upload/forward relations backing at-most-once
// delivery, persisted as the three JSON documents specified in spec §6
// (download_history.json, upload_history.json, forward_history.json).
//
// The document shapes and the channel-id/upload bookkeeping are ported
// from the original history_tracker.py and json_storage.py
// (original_source/tg_forwarder/core/), translated from Python's loose
// dict-of-dicts into typed Go structs.
package history

import "time"

// DownloadChannelRecord is one channel's entry in download_history.json.
type DownloadChannelRecord struct {
	ChannelID          int64 `json:"channel_id"`
	DownloadedMessages []int `json:"downloaded_messages"`
}

// DownloadDocument is the download_history.json shape.
type DownloadDocument struct {
	Channels    map[string]*DownloadChannelRecord `json:"channels"`
	LastUpdated time.Time                         `json:"last_updated"`
}

// UploadFileRecord is one file's entry in upload_history.json. RemoteIDs
// supplements the spec's minimal shape with the per-target remote
// message IDs the data model (§3 UploadRecord) requires for later copy
// operations.
type UploadFileRecord struct {
	UploadedTo []string         `json:"uploaded_to"`
	RemoteIDs  map[string][]int `json:"remote_ids"`
	UploadTime time.Time        `json:"upload_time"`
	FileSize   int64            `json:"file_size"`
	MediaType  string           `json:"media_type"`
}

// UploadDocument is the upload_history.json shape.
type UploadDocument struct {
	Files       map[string]*UploadFileRecord `json:"files"`
	LastUpdated time.Time                    `json:"last_updated"`
}

// ForwardChannelRecord is one source channel's entry in
// forward_history.json.
type ForwardChannelRecord struct {
	ChannelID          int64               `json:"channel_id"`
	ForwardedMessages map[string][]string `json:"forwarded_messages"` // msg id (string) -> target keys
}

// ForwardDocument is the forward_history.json shape.
type ForwardDocument struct {
	Channels    map[string]*ForwardChannelRecord `json:"channels"`
	LastUpdated time.Time                        `json:"last_updated"`
}

func newDownloadDocument() *DownloadDocument {
	return &DownloadDocument{Channels: map[string]*DownloadChannelRecord{}}
}

func newUploadDocument() *UploadDocument {
	return &UploadDocument{Files: map[string]*UploadFileRecord{}}
}

func newForwardDocument() *ForwardDocument {
	return &ForwardDocument{Channels: map[string]*ForwardChannelRecord{}}
}
