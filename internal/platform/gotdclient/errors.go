package gotdclient

import (
	"strings"
	"time"

	gotderr "github.com/gotd/td/tgerr"

	"tgforward/internal/tgerr"
)

// classify maps a raw gotd/td error onto the module's Kind taxonomy:
// FLOOD_WAIT becomes a rate-limit signal the Rate-Limit Adapter can sleep
// on, AUTH_KEY/SESSION errors become KindAuthorization so the adapter
// attempts one reconnect, and everything else is bucketed by the RPC
// error code family Telegram itself groups them into.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if existing, ok := err.(*tgerr.Error); ok {
		return existing
	}

	var rpcErr *gotderr.Error
	if gotderr.As(err, &rpcErr) {
		if strings.HasPrefix(rpcErr.Type, "FLOOD_WAIT") || strings.HasPrefix(rpcErr.Type, "FLOOD_PREMIUM_WAIT") {
			return tgerr.RateLimit(time.Duration(rpcErr.Argument)*time.Second, err)
		}
		switch {
		case strings.Contains(rpcErr.Type, "AUTH_KEY"), strings.Contains(rpcErr.Type, "SESSION_REVOKED"), strings.Contains(rpcErr.Type, "USER_DEACTIVATED"):
			return tgerr.New(tgerr.KindAuthorization, err)
		case strings.Contains(rpcErr.Type, "CHANNEL_PRIVATE"), strings.Contains(rpcErr.Type, "CHAT_WRITE_FORBIDDEN"), strings.Contains(rpcErr.Type, "USER_BANNED_IN_CHANNEL"), strings.Contains(rpcErr.Type, "CHAT_ADMIN_REQUIRED"):
			return tgerr.New(tgerr.KindPermission, err)
		case strings.Contains(rpcErr.Type, "_NOT_FOUND"), strings.Contains(rpcErr.Type, "MESSAGE_ID_INVALID"), strings.Contains(rpcErr.Type, "CHANNEL_INVALID"):
			return tgerr.New(tgerr.KindNotFound, err)
		case rpcErr.Code >= 500:
			return tgerr.New(tgerr.KindTransient, err)
		default:
			return tgerr.New(tgerr.KindUnknown, err)
		}
	}

	return tgerr.New(tgerr.KindTransient, err)
}
