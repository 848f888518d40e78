package gotdclient

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/gotd/td/tg"

	"tgforward/internal/model"
)

// fromMessage converts a raw *tg.Message into the descriptor the core
// operates on, dispatching on its media payload the way the teacher's
// FileFromMedia (internal/utils/helpers.go) dispatches on tg.MessageMediaClass.
func fromMessage(source model.ChannelKey, msg *tg.Message) *model.MessageDescriptor {
	d := &model.MessageDescriptor{
		Source:    source,
		MessageID: msg.ID,
		Kind:      model.KindText,
		Caption:   msg.Message,
		Date:      time.Unix(int64(msg.Date), 0).UTC(),
		Entities:  entitiesFrom(msg.Entities),
	}
	if msg.GroupedID != 0 {
		d.AlbumKey = strconv.FormatInt(msg.GroupedID, 10)
	}

	media, ok := msg.GetMedia()
	if !ok {
		return d
	}

	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		photo, ok := m.Photo.AsNotEmpty()
		if !ok {
			return d
		}
		d.Kind = model.KindPhoto
		d.FileName = "photo_" + strconv.FormatInt(photo.GetID(), 10) + ".jpg"
		d.MimeType = "image/jpeg"
		if sizes := photo.Sizes; len(sizes) > 0 {
			if sz, ok := sizes[len(sizes)-1].AsNotEmpty(); ok {
				d.Width, d.Height = sz.GetWidth(), sz.GetHeight()
			}
		}
	case *tg.MessageMediaDocument:
		doc, ok := m.Document.AsNotEmpty()
		if !ok {
			return d
		}
		d.MimeType = doc.MimeType
		d.Size = doc.Size
		d.Kind = model.KindDocument
		for _, attr := range doc.Attributes {
			switch a := attr.(type) {
			case *tg.DocumentAttributeFilename:
				d.FileName = a.FileName
			case *tg.DocumentAttributeVideo:
				d.Kind = model.KindVideo
				d.Width, d.Height, d.Duration = a.W, a.H, int(a.Duration)
			case *tg.DocumentAttributeAudio:
				d.Duration = int(a.Duration)
				if a.Voice {
					d.Kind = model.KindVoice
				} else {
					d.Kind = model.KindAudio
				}
			case *tg.DocumentAttributeAnimated:
				d.Kind = model.KindAnimation
			case *tg.DocumentAttributeSticker:
				d.Kind = model.KindSticker
			}
		}
	}
	return d
}

func entitiesFrom(ents []tg.MessageEntityClass) []model.CaptionEntity {
	out := make([]model.CaptionEntity, 0, len(ents))
	for _, e := range ents {
		out = append(out, model.CaptionEntity{
			Type:   fmtEntityType(e),
			Offset: entityOffset(e),
			Length: entityLength(e),
		})
	}
	return out
}

func fmtEntityType(e tg.MessageEntityClass) string {
	switch e.(type) {
	case *tg.MessageEntityBold:
		return "bold"
	case *tg.MessageEntityItalic:
		return "italic"
	case *tg.MessageEntityCode:
		return "code"
	case *tg.MessageEntityPre:
		return "pre"
	case *tg.MessageEntityTextURL:
		return "text_link"
	case *tg.MessageEntityURL:
		return "url"
	case *tg.MessageEntityMention:
		return "mention"
	case *tg.MessageEntityHashtag:
		return "hashtag"
	default:
		return "unknown"
	}
}

func entityOffset(e tg.MessageEntityClass) int {
	type offsetter interface{ GetOffset() int }
	if o, ok := e.(offsetter); ok {
		return o.GetOffset()
	}
	return 0
}

func entityLength(e tg.MessageEntityClass) int {
	type lengther interface{ GetLength() int }
	if l, ok := e.(lengther); ok {
		return l.GetLength()
	}
	return 0
}

// GetMessages fetches specific message IDs, grounded on the teacher's
// GetTGMessage (internal/utils/helpers.go), generalized to any channel
// and to a batch of ids instead of one.
func (c *Client) GetMessages(ctx context.Context, chat model.ChannelKey, ids []int) ([]*model.MessageDescriptor, error) {
	ic, err := c.inputChannel(ctx, chat)
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		// "latest message id" lookup: a zero-length request means the
		// caller wants the current end of the channel's history.
		hist, err := c.tg.API().MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:  &tg.InputPeerChannel{ChannelID: ic.ChannelID, AccessHash: ic.AccessHash},
			Limit: 1,
		})
		if err != nil {
			return nil, classify(err)
		}
		msgs := messagesFrom(hist)
		if len(msgs) == 0 {
			return nil, nil
		}
		if m, ok := msgs[0].(*tg.Message); ok {
			return []*model.MessageDescriptor{fromMessage(chat, m)}, nil
		}
		return nil, nil
	}

	inputIDs := make([]tg.InputMessageClass, len(ids))
	for i, id := range ids {
		inputIDs[i] = &tg.InputMessageID{ID: id}
	}
	res, err := c.tg.API().ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{Channel: ic, ID: inputIDs})
	if err != nil {
		return nil, classify(err)
	}

	var out []*model.MessageDescriptor
	for _, raw := range messagesFrom(res) {
		if m, ok := raw.(*tg.Message); ok {
			out = append(out, fromMessage(chat, m))
		}
	}
	return out, nil
}

func messagesFrom(res tg.MessagesMessagesClass) []tg.MessageClass {
	switch r := res.(type) {
	case *tg.MessagesChannelMessages:
		return r.Messages
	case *tg.MessagesMessages:
		return r.Messages
	case *tg.MessagesMessagesSlice:
		return r.Messages
	default:
		return nil
	}
}

// GetChatHistory pages through [endID, startID] (both inclusive) by
// descending message id, batchSize per page, via
// MessagesGetHistoryRequest's MinID/OffsetID window.
func (c *Client) GetChatHistory(ctx context.Context, chat model.ChannelKey, startID, endID, batchSize int, yield func([]*model.MessageDescriptor) bool) error {
	peer, err := c.inputPeer(ctx, chat)
	if err != nil {
		return err
	}

	offsetID := startID + 1
	for {
		hist, err := c.tg.API().MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:     peer,
			OffsetID: offsetID,
			MinID:    endID - 1,
			Limit:    batchSize,
		})
		if err != nil {
			return classify(err)
		}
		raw := messagesFrom(hist)
		if len(raw) == 0 {
			return nil
		}

		batch := make([]*model.MessageDescriptor, 0, len(raw))
		minSeen := offsetID
		for _, m := range raw {
			msg, ok := m.(*tg.Message)
			if !ok || msg.ID < endID {
				continue
			}
			batch = append(batch, fromMessage(chat, msg))
			if msg.ID < minSeen {
				minSeen = msg.ID
			}
		}
		if len(batch) == 0 {
			return nil
		}
		if !yield(batch) {
			return nil
		}
		if minSeen <= endID || minSeen >= offsetID {
			return nil
		}
		offsetID = minSeen
	}
}

// GetMediaGroup fetches every message sharing anyID's album key by
// fetching the message itself, then a small window of neighboring
// messages (Telegram has no direct "get album" RPC) and filtering by
// GroupedID, the same windowed-search approach original_source's
// assembler uses when reassembling albums from raw updates.
func (c *Client) GetMediaGroup(ctx context.Context, chat model.ChannelKey, anyID int) ([]*model.MessageDescriptor, error) {
	msgs, err := c.GetMessages(ctx, chat, []int{anyID})
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, errNotFound("message", strconv.Itoa(anyID))
	}
	target := msgs[0]
	if target.AlbumKey == "" {
		return []*model.MessageDescriptor{target}, nil
	}

	const window = 10
	ids := make([]int, 0, window*2)
	for id := anyID - window; id <= anyID+window; id++ {
		if id > 0 && id != anyID {
			ids = append(ids, id)
		}
	}
	neighbors, err := c.GetMessages(ctx, chat, ids)
	if err != nil {
		return nil, err
	}

	out := []*model.MessageDescriptor{target}
	for _, m := range neighbors {
		if m.AlbumKey == target.AlbumKey {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID < out[j].MessageID })
	return out, nil
}
