package gotdclient

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"

	"tgforward/internal/model"
)

// locationFromMedia extracts the file location to stream, the same two
// cases the teacher's FileFromMedia (internal/utils/helpers.go) handles:
// documents carry their own location; photos need one assembled from the
// largest available size.
func locationFromMedia(media tg.MessageMediaClass) (tg.InputFileLocationClass, error) {
	switch m := media.(type) {
	case *tg.MessageMediaDocument:
		doc, ok := m.Document.AsNotEmpty()
		if !ok {
			return nil, errors.New("gotdclient: document media has no payload")
		}
		return doc.AsInputDocumentFileLocation(), nil
	case *tg.MessageMediaPhoto:
		photo, ok := m.Photo.AsNotEmpty()
		if !ok {
			return nil, errors.New("gotdclient: photo media has no payload")
		}
		sizes := photo.Sizes
		if len(sizes) == 0 {
			return nil, errors.New("gotdclient: photo has no sizes")
		}
		size, ok := sizes[len(sizes)-1].AsNotEmpty()
		if !ok {
			return nil, errors.New("gotdclient: photo size is empty")
		}
		return &tg.InputPhotoFileLocation{
			ID:            photo.GetID(),
			AccessHash:    photo.GetAccessHash(),
			FileReference: photo.GetFileReference(),
			ThumbSize:     size.GetType(),
		}, nil
	default:
		return nil, errors.New("gotdclient: unsupported media type")
	}
}

// DownloadMedia refetches the message to get a fresh file location (file
// references expire, as the teacher's RefetchFileFromMessageAndChannel
// comment notes) and streams it into w via gotd/td's downloader.
func (c *Client) DownloadMedia(ctx context.Context, chat model.ChannelKey, msg *model.MessageDescriptor, w io.Writer) (int64, error) {
	ic, err := c.inputChannel(ctx, chat)
	if err != nil {
		return 0, err
	}

	res, err := c.tg.API().ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
		Channel: ic,
		ID:      []tg.InputMessageClass{&tg.InputMessageID{ID: msg.MessageID}},
	})
	if err != nil {
		return 0, classify(err)
	}
	raw := messagesFrom(res)
	if len(raw) == 0 {
		return 0, errNotFound("message", strconv.Itoa(msg.MessageID))
	}
	tgMsg, ok := raw[0].(*tg.Message)
	if !ok {
		return 0, errNotFound("message", strconv.Itoa(msg.MessageID))
	}
	media, ok := tgMsg.GetMedia()
	if !ok {
		return 0, errors.New("gotdclient: message has no media")
	}
	loc, err := locationFromMedia(media)
	if err != nil {
		return 0, err
	}

	n, err := downloader.NewDownloader().Download(c.tg.API(), loc).Stream(ctx, w)
	if err != nil {
		return n, classify(err)
	}
	return n, nil
}
