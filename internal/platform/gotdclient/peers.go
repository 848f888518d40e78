package gotdclient

import (
	"context"
	"errors"

	"github.com/celestix/gotgproto/storage"
	"github.com/gotd/td/constant"
	"github.com/gotd/td/tg"

	"tgforward/internal/model"
	"tgforward/internal/platform"
)

// toBotAPIChannelID mirrors the teacher's helpers.go conversion: gotgproto
// beta22+'s PeerStorage keys channels by their BotAPI-style (-100<id>) id.
func toBotAPIChannelID(rawChannelID int64) int64 {
	var id constant.TDLibPeerID
	id.Channel(rawChannelID)
	return int64(id)
}

// inputChannel resolves key to an *tg.InputChannel, checking PeerStorage
// first and falling back to a live ChannelsGetChannels call, exactly as
// the teacher's GetChannelPeer does.
func (c *Client) inputChannel(ctx context.Context, key model.ChannelKey) (*tg.InputChannel, error) {
	if key.IsNumeric() {
		botAPIID := toBotAPIChannelID(key.ID)
		if peer := c.tg.PeerStorage.GetInputPeerById(botAPIID); peer != nil {
			if ip, ok := peer.(*tg.InputPeerChannel); ok {
				return &tg.InputChannel{ChannelID: ip.ChannelID, AccessHash: ip.AccessHash}, nil
			}
		}

		channels, err := c.tg.API().ChannelsGetChannels(ctx, []tg.InputChannelClass{&tg.InputChannel{ChannelID: key.ID}})
		if err != nil {
			return nil, classify(err)
		}
		chats := channels.GetChats()
		if len(chats) == 0 {
			return nil, errNotFound("channel", key.String())
		}
		channel, ok := chats[0].(*tg.Channel)
		if !ok {
			return nil, errNotFound("channel", key.String())
		}
		c.tg.PeerStorage.AddPeer(channel.GetID(), channel.AccessHash, storage.TypeChannel, channel.Username)
		return channel.AsInput(), nil
	}

	resolved, err := c.tg.API().ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: key.Username})
	if err != nil {
		return nil, classify(err)
	}
	for _, chat := range resolved.Chats {
		if channel, ok := chat.(*tg.Channel); ok {
			c.tg.PeerStorage.AddPeer(channel.GetID(), channel.AccessHash, storage.TypeChannel, channel.Username)
			return channel.AsInput(), nil
		}
	}
	return nil, errNotFound("channel", key.String())
}

func (c *Client) inputPeer(ctx context.Context, key model.ChannelKey) (tg.InputPeerClass, error) {
	ic, err := c.inputChannel(ctx, key)
	if err != nil {
		return nil, err
	}
	return &tg.InputPeerChannel{ChannelID: ic.ChannelID, AccessHash: ic.AccessHash}, nil
}

// GetChat resolves channel metadata the Capability Prober needs: title,
// channel-ness, protected-content flag, and this account's admin rights.
func (c *Client) GetChat(ctx context.Context, key model.ChannelKey) (*platform.ChatInfo, error) {
	ic, err := c.inputChannel(ctx, key)
	if err != nil {
		return nil, err
	}

	full, err := c.tg.API().ChannelsGetFullChannel(ctx, ic)
	if err != nil {
		return nil, classify(err)
	}

	var title string
	var protected bool
	var admin *platform.AdminRights
	for _, chat := range full.Chats {
		channel, ok := chat.(*tg.Channel)
		if !ok || channel.GetID() != ic.ChannelID {
			continue
		}
		title = channel.Title
		protected = channel.Noforwards
		if rights, ok := channel.GetAdminRights(); ok {
			admin = &platform.AdminRights{IsAdmin: true, CanPost: rights.PostMessages, CanEdit: rights.EditMessages}
		} else if channel.Creator {
			admin = &platform.AdminRights{IsAdmin: true, CanPost: true, CanEdit: true}
		}
	}

	resolvedKey := key
	if !key.IsNumeric() {
		resolvedKey = model.ChannelKey{ID: ic.ChannelID}
	}

	return &platform.ChatInfo{
		Key:                 resolvedKey,
		Title:               title,
		IsChannel:           true,
		HasProtectedContent: protected,
		AdminRights:         admin,
	}, nil
}

func errNotFound(kind, id string) error {
	return classify(errors.New(kind + " " + id + " not found"))
}
