package gotdclient

import (
	"context"
	"errors"
	"math/rand"

	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/message/styling"
	"github.com/gotd/td/tg"

	"tgforward/internal/model"
	"tgforward/internal/platform"
)

// SendMessage posts a plain text message, used for KindText descriptors
// that carry no downloadable media.
func (c *Client) SendMessage(ctx context.Context, target model.ChannelKey, caption string, entities []model.CaptionEntity) (platform.SentMessage, error) {
	peer, err := c.inputPeer(ctx, target)
	if err != nil {
		return platform.SentMessage{}, err
	}
	updates, err := c.sender.To(peer).Text(ctx, caption)
	if err != nil {
		return platform.SentMessage{}, classify(err)
	}
	return platform.SentMessage{RemoteMessageID: lastMessageID(updates)}, nil
}

// SendMedia uploads item's local file and sends it, dispatching on Kind
// to pick the right upload helper from gotd/td's telegram/message package.
func (c *Client) SendMedia(ctx context.Context, target model.ChannelKey, item platform.SendableMedia, caption string, entities []model.CaptionEntity) (platform.SentMessage, error) {
	peer, err := c.inputPeer(ctx, target)
	if err != nil {
		return platform.SentMessage{}, err
	}

	upload, err := c.uploadFile(ctx, item.FilePath)
	if err != nil {
		return platform.SentMessage{}, err
	}

	doc := mediaDocument(item, upload, caption)
	updates, err := c.sender.To(peer).Media(ctx, doc)
	if err != nil {
		return platform.SentMessage{}, classify(err)
	}
	return platform.SentMessage{RemoteMessageID: lastMessageID(updates)}, nil
}

// SendMediaGroup uploads and sends every item as one media group.
func (c *Client) SendMediaGroup(ctx context.Context, target model.ChannelKey, items []platform.SendableMedia, caption string, entities []model.CaptionEntity) ([]platform.SentMessage, error) {
	if len(items) == 0 {
		return nil, errors.New("gotdclient: empty media group")
	}
	peer, err := c.inputPeer(ctx, target)
	if err != nil {
		return nil, err
	}

	docs := make([]message.MultiMediaOption, len(items))
	for i, item := range items {
		upload, err := c.uploadFile(ctx, item.FilePath)
		if err != nil {
			return nil, err
		}
		itemCaption := ""
		if i == 0 {
			itemCaption = caption
		}
		docs[i] = mediaDocument(item, upload, itemCaption)
	}

	updates, err := c.sender.To(peer).Album(ctx, docs[0], docs[1:]...)
	if err != nil {
		return nil, classify(err)
	}
	return messageIDsFromAlbum(updates, len(items)), nil
}

func (c *Client) uploadFile(ctx context.Context, path string) (tg.InputFileClass, error) {
	upload, err := c.uploader.FromPath(ctx, path)
	if err != nil {
		return nil, classify(err)
	}
	return upload, nil
}

func mediaDocument(item platform.SendableMedia, upload tg.InputFileClass, caption string) message.MediaOption {
	switch item.Descriptor.Kind {
	case model.KindPhoto:
		return message.UploadedPhoto(upload, styling.Plain(caption))
	case model.KindVideo, model.KindAnimation:
		doc := message.UploadedDocument(upload, styling.Plain(caption)).MIME(item.Descriptor.MimeType)
		if item.Descriptor.FileName != "" {
			doc = doc.Filename(item.Descriptor.FileName)
		}
		return doc.Video()
	case model.KindAudio, model.KindVoice:
		doc := message.UploadedDocument(upload, styling.Plain(caption)).MIME(item.Descriptor.MimeType)
		if item.Descriptor.FileName != "" {
			doc = doc.Filename(item.Descriptor.FileName)
		}
		return doc.Audio()
	default:
		doc := message.UploadedDocument(upload, styling.Plain(caption)).MIME(item.Descriptor.MimeType)
		if item.Descriptor.FileName != "" {
			doc = doc.Filename(item.Descriptor.FileName)
		}
		return doc
	}
}

// CopyMessage and CopyMediaGroup implement the MTProto equivalent of Bot
// API's copyMessage: gotd/td has no distinct "copy" RPC, so these strip
// attribution from a native forward via DropAuthor instead of
// re-uploading bytes, exactly as
// MessagesForwardMessagesRequest.DropAuthor is documented to behave.
func (c *Client) CopyMessage(ctx context.Context, toTarget, fromTarget model.ChannelKey, fromRemoteID int) (platform.SentMessage, error) {
	sent, err := c.forward(ctx, toTarget, fromTarget, []int{fromRemoteID}, true)
	if err != nil {
		return platform.SentMessage{}, err
	}
	if len(sent) == 0 {
		return platform.SentMessage{}, errors.New("gotdclient: copy produced no message")
	}
	return sent[0], nil
}

// CopyMediaGroup replicates an album's messages by attribution-stripped
// forward, one MessagesForwardMessagesRequest carrying every member id.
func (c *Client) CopyMediaGroup(ctx context.Context, toTarget, fromTarget model.ChannelKey, fromRemoteIDs []int) ([]platform.SentMessage, error) {
	return c.forward(ctx, toTarget, fromTarget, fromRemoteIDs, true)
}

// ForwardMessages forwards msgIDs from source to target preserving
// attribution, grounded on the teacher's ForwardMessages
// (internal/utils/helpers.go), generalized from its fixed log-channel
// destination to an arbitrary target.
func (c *Client) ForwardMessages(ctx context.Context, target, source model.ChannelKey, msgIDs []int) ([]platform.SentMessage, error) {
	return c.forward(ctx, target, source, msgIDs, false)
}

// forward issues one MessagesForwardMessagesRequest for msgIDs, optionally
// stripping attribution (dropAuthor) for the copy-without-attribution
// path shared by ForwardMessages and CopyMessage/CopyMediaGroup.
func (c *Client) forward(ctx context.Context, target, source model.ChannelKey, msgIDs []int, dropAuthor bool) ([]platform.SentMessage, error) {
	fromPeer, err := c.inputPeer(ctx, source)
	if err != nil {
		return nil, err
	}
	toPeer, err := c.inputPeer(ctx, target)
	if err != nil {
		return nil, err
	}

	randomIDs := make([]int64, len(msgIDs))
	for i := range randomIDs {
		randomIDs[i] = rand.Int63()
	}

	updates, err := c.tg.API().MessagesForwardMessages(ctx, &tg.MessagesForwardMessagesRequest{
		RandomID:   randomIDs,
		FromPeer:   fromPeer,
		ID:         msgIDs,
		ToPeer:     toPeer,
		DropAuthor: dropAuthor,
	})
	if err != nil {
		return nil, classify(err)
	}
	return messageIDsFromAlbum(updates, len(msgIDs)), nil
}

func lastMessageID(updates tg.UpdatesClass) int {
	ids := messageIDsFromAlbum(updates, 1)
	if len(ids) == 0 {
		return 0
	}
	return ids[len(ids)-1].RemoteMessageID
}

// messageIDsFromAlbum extracts the new message ids from an Updates
// response, in the order Telegram reports them.
func messageIDsFromAlbum(updates tg.UpdatesClass, expect int) []platform.SentMessage {
	var out []platform.SentMessage
	switch u := updates.(type) {
	case *tg.Updates:
		for _, upd := range u.Updates {
			if id, ok := newMessageID(upd); ok {
				out = append(out, platform.SentMessage{RemoteMessageID: id})
			}
		}
	case *tg.UpdateShort:
		if id, ok := newMessageID(u.Update); ok {
			out = append(out, platform.SentMessage{RemoteMessageID: id})
		}
	}
	if len(out) > expect {
		out = out[len(out)-expect:]
	}
	return out
}

func newMessageID(upd tg.UpdateClass) (int, bool) {
	switch u := upd.(type) {
	case *tg.UpdateNewMessage:
		if m, ok := u.Message.(*tg.Message); ok {
			return m.ID, true
		}
	case *tg.UpdateNewChannelMessage:
		if m, ok := u.Message.(*tg.Message); ok {
			return m.ID, true
		}
	case *tg.UpdateMessageID:
		return u.ID, true
	}
	return 0, false
}
