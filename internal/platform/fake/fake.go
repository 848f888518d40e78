// Package fake provides an in-memory platform.Client used by tests across
// the module, standing in for the real gotd/td-backed adapter (spec §9:
// "inject them as interface values... so tests substitute fakes").
package fake

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"tgforward/internal/model"
	"tgforward/internal/platform"
)

// Client is a deterministic, in-memory implementation of platform.Client.
type Client struct {
	mu sync.Mutex

	Chats    map[model.ChannelKey]*platform.ChatInfo
	Messages map[model.ChannelKey]map[int]*model.MessageDescriptor
	Media    map[model.ChannelKey]map[int][]byte // msg id -> file bytes

	nextRemoteID int

	// Calls records every RPC-shaped call for assertions.
	Calls []string

	// Injected behaviors.
	RateLimitOnce   map[string]bool           // method name -> trigger once
	UnreadableChats map[model.ChannelKey]bool // GetMessages fails for these keys
}

// New builds an empty fake client.
func New() *Client {
	return &Client{
		Chats:         map[model.ChannelKey]*platform.ChatInfo{},
		Messages:      map[model.ChannelKey]map[int]*model.MessageDescriptor{},
		Media:         map[model.ChannelKey]map[int][]byte{},
		RateLimitOnce: map[string]bool{},
	}
}

func (c *Client) record(call string) {
	c.Calls = append(c.Calls, call)
}

// AddChat registers chat info under key.
func (c *Client) AddChat(key model.ChannelKey, info *platform.ChatInfo) {
	c.Chats[key] = info
}

// AddMessage registers a message descriptor and, optionally, its media
// bytes.
func (c *Client) AddMessage(chat model.ChannelKey, msg *model.MessageDescriptor, media []byte) {
	if c.Messages[chat] == nil {
		c.Messages[chat] = map[int]*model.MessageDescriptor{}
	}
	c.Messages[chat][msg.MessageID] = msg
	if media != nil {
		if c.Media[chat] == nil {
			c.Media[chat] = map[int][]byte{}
		}
		c.Media[chat][msg.MessageID] = media
	}
}

func (c *Client) Connect(ctx context.Context) error    { c.record("Connect"); return nil }
func (c *Client) Disconnect(ctx context.Context) error { c.record("Disconnect"); return nil }

func (c *Client) GetChat(ctx context.Context, key model.ChannelKey) (*platform.ChatInfo, error) {
	c.record("GetChat")
	info, ok := c.Chats[key]
	if !ok {
		return nil, fmt.Errorf("fake: chat %s not found", key.String())
	}
	return info, nil
}

func (c *Client) GetMessages(ctx context.Context, chat model.ChannelKey, ids []int) ([]*model.MessageDescriptor, error) {
	c.record("GetMessages")
	if c.UnreadableChats[chat] {
		return nil, fmt.Errorf("fake: chat %s is not readable", chat.String())
	}
	var out []*model.MessageDescriptor
	for _, id := range ids {
		if m, ok := c.Messages[chat][id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (c *Client) GetChatHistory(ctx context.Context, chat model.ChannelKey, startID, endID, batchSize int, yield func([]*model.MessageDescriptor) bool) error {
	c.record("GetChatHistory")
	var ids []int
	for id := range c.Messages[chat] {
		if id <= startID && id >= endID {
			ids = append(ids, id)
		}
	}
	// newest-to-oldest
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if ids[j] > ids[i] {
				ids[i], ids[j] = ids[j], ids[i]
			}
		}
	}
	for i := 0; i < len(ids); i += batchSize {
		end := i + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := make([]*model.MessageDescriptor, 0, end-i)
		for _, id := range ids[i:end] {
			batch = append(batch, c.Messages[chat][id])
		}
		if !yield(batch) {
			return nil
		}
	}
	return nil
}

func (c *Client) GetMediaGroup(ctx context.Context, chat model.ChannelKey, anyID int) ([]*model.MessageDescriptor, error) {
	c.record("GetMediaGroup")
	target, ok := c.Messages[chat][anyID]
	if !ok {
		return nil, fmt.Errorf("fake: message %d not found", anyID)
	}
	if target.AlbumKey == "" {
		return []*model.MessageDescriptor{target}, nil
	}
	var out []*model.MessageDescriptor
	for _, m := range c.Messages[chat] {
		if m.AlbumKey == target.AlbumKey {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID < out[j].MessageID })
	return out, nil
}

func (c *Client) DownloadMedia(ctx context.Context, chat model.ChannelKey, msg *model.MessageDescriptor, w io.Writer) (int64, error) {
	c.record("DownloadMedia")
	data, ok := c.Media[chat][msg.MessageID]
	if !ok {
		return 0, fmt.Errorf("fake: no media for message %d", msg.MessageID)
	}
	n, err := w.Write(data)
	return int64(n), err
}

func (c *Client) nextID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextRemoteID++
	return c.nextRemoteID
}

func (c *Client) SendMessage(ctx context.Context, target model.ChannelKey, caption string, entities []model.CaptionEntity) (platform.SentMessage, error) {
	c.record("SendMessage")
	return platform.SentMessage{RemoteMessageID: c.nextID()}, nil
}

func (c *Client) SendMedia(ctx context.Context, target model.ChannelKey, item platform.SendableMedia, caption string, entities []model.CaptionEntity) (platform.SentMessage, error) {
	c.record("SendMedia")
	return platform.SentMessage{RemoteMessageID: c.nextID()}, nil
}

func (c *Client) SendMediaGroup(ctx context.Context, target model.ChannelKey, items []platform.SendableMedia, caption string, entities []model.CaptionEntity) ([]platform.SentMessage, error) {
	c.record("SendMediaGroup")
	out := make([]platform.SentMessage, len(items))
	for i := range items {
		out[i] = platform.SentMessage{RemoteMessageID: c.nextID()}
	}
	return out, nil
}

func (c *Client) CopyMessage(ctx context.Context, toTarget, fromTarget model.ChannelKey, fromRemoteID int) (platform.SentMessage, error) {
	c.record("CopyMessage")
	return platform.SentMessage{RemoteMessageID: c.nextID()}, nil
}

func (c *Client) CopyMediaGroup(ctx context.Context, toTarget, fromTarget model.ChannelKey, fromRemoteIDs []int) ([]platform.SentMessage, error) {
	c.record("CopyMediaGroup")
	out := make([]platform.SentMessage, len(fromRemoteIDs))
	for i := range fromRemoteIDs {
		out[i] = platform.SentMessage{RemoteMessageID: c.nextID()}
	}
	return out, nil
}

func (c *Client) ForwardMessages(ctx context.Context, target, source model.ChannelKey, msgIDs []int) ([]platform.SentMessage, error) {
	c.record("ForwardMessages")
	out := make([]platform.SentMessage, len(msgIDs))
	for i := range msgIDs {
		out[i] = platform.SentMessage{RemoteMessageID: c.nextID()}
	}
	return out, nil
}

var _ platform.Client = (*Client)(nil)
