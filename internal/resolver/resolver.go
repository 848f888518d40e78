// Package resolver implements the Channel Resolver (spec §4.1): parsing
// the six user-facing channel identifier syntaxes into a canonical key,
// resolving usernames/invite links to numeric IDs through the platform,
// and caching the result for a TTL window.
//
// Parsing rules are ported from the original tg_forwarder channel_parser
// module (original_source/tg_forwarder/core/channel_parser.py), adapted
// from Python's loose str/int union return into Go's explicit
// model.ChannelKey.
package resolver

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"tgforward/internal/model"
	"tgforward/internal/platform"
	"tgforward/internal/tgcache"
	"tgforward/internal/tgerr"
)

const (
	cacheSizeBytes = 4 * 1024 * 1024
	// DefaultTTL matches the Capability Prober's 30-minute default; the
	// spec states the TTL window is what keeps resolution pure, not a
	// specific duration for the Resolver itself, so both default to 30
	// minutes unless overridden.
	DefaultTTL = 30 * time.Minute
)

var usernameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{3,}$`)

// Resolver turns identifiers into canonical keys, probing the platform
// for numeric IDs on cache miss.
type Resolver struct {
	client platform.Client
	cache  *tgcache.Cache
	ttl    time.Duration
	log    *zap.Logger
}

type cachedRef struct {
	Key         model.ChannelKey
	EmbeddedMsg int
}

// New builds a Resolver backed by client for on-demand numeric-ID lookups.
func New(client platform.Client, log *zap.Logger, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{
		client: client,
		cache:  tgcache.New(cacheSizeBytes),
		ttl:    ttl,
		log:    log.Named("Resolver"),
	}
}

// Parse applies the six-syntax grammar from spec §4.1 and returns a
// partially-resolved ChannelRef: Key.Username set for username/invite
// forms, Key.ID set for private numeric-ID forms, and any embedded
// message ID extracted from a URL. It never calls the platform.
func Parse(input string) (model.ChannelRef, error) {
	original := input
	if input == "" {
		return model.ChannelRef{}, tgerr.ParseError("empty channel identifier")
	}

	// "@https://t.me/..." — strip the stray @ prefix before a URL scheme.
	if strings.HasPrefix(input, "@") && strings.Contains(input, "://") {
		input = strings.TrimPrefix(input, "@")
	}

	// Bare "+code" invite, no slash.
	if strings.HasPrefix(input, "+") && !strings.Contains(input, "/") {
		return model.ChannelRef{
			Input:   original,
			Key:     model.ChannelKey{Username: "https://t.me/" + input},
			Display: "private channel (invite link)",
		}, nil
	}

	// "@name" username.
	if strings.HasPrefix(input, "@") {
		name := strings.TrimPrefix(input, "@")
		return model.ChannelRef{
			Input:   original,
			Key:     model.ChannelKey{Username: name},
			Display: "@" + name,
		}, nil
	}

	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		return parseURL(original, input)
	}

	// Bare numeric ID.
	if id, err := strconv.ParseInt(input, 10, 64); err == nil {
		return model.ChannelRef{
			Input:   original,
			Key:     model.ChannelKey{ID: id},
			Display: fmt.Sprintf("private channel (%d)", id),
		}, nil
	}

	// Bare username.
	if usernameRe.MatchString(input) {
		return model.ChannelRef{
			Input:   original,
			Key:     model.ChannelKey{Username: input},
			Display: "@" + input,
		}, nil
	}

	return model.ChannelRef{}, tgerr.ParseError("unrecognized channel identifier: %s", original)
}

func parseURL(original, input string) (model.ChannelRef, error) {
	u, err := url.Parse(input)
	if err != nil {
		return model.ChannelRef{}, tgerr.ParseError("invalid channel URL %q: %v", original, err)
	}
	if u.Host != "t.me" {
		return model.ChannelRef{}, tgerr.ParseError("unsupported host %q in %q", u.Host, original)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return model.ChannelRef{}, tgerr.ParseError("empty path in channel URL %q", original)
	}

	// Invite link: /+code or /joinchat/hash
	if strings.HasPrefix(parts[0], "+") {
		return model.ChannelRef{
			Input:   original,
			Key:     model.ChannelKey{Username: input},
			Display: "private channel (invite link)",
		}, nil
	}
	if parts[0] == "joinchat" {
		if len(parts) < 2 || parts[1] == "" {
			return model.ChannelRef{}, tgerr.ParseError("malformed joinchat link %q", original)
		}
		return model.ChannelRef{
			Input:   original,
			Key:     model.ChannelKey{Username: input},
			Display: "private channel (invite link)",
		}, nil
	}

	// Private channel: /c/<id>[/<msg>]
	if parts[0] == "c" {
		if len(parts) < 2 {
			return model.ChannelRef{}, tgerr.ParseError("malformed private link %q", original)
		}
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return model.ChannelRef{}, tgerr.ParseError("invalid private channel id in %q: %v", original, err)
		}
		ref := model.ChannelRef{
			Input:   original,
			Key:     model.ChannelKey{ID: id},
			Display: fmt.Sprintf("private channel (%d)", id),
		}
		if len(parts) >= 3 {
			msgID, err := strconv.Atoi(parts[2])
			if err != nil {
				return model.ChannelRef{}, tgerr.ParseError("invalid message id in %q: %v", original, err)
			}
			ref.EmbeddedMsg = msgID
		}
		return ref, nil
	}

	// Public username, optionally with a message id: /name or /name/<msg>
	if len(parts) == 1 {
		return model.ChannelRef{
			Input:   original,
			Key:     model.ChannelKey{Username: parts[0]},
			Display: "@" + parts[0],
		}, nil
	}
	if len(parts) == 2 {
		msgID, err := strconv.Atoi(parts[1])
		if err != nil {
			return model.ChannelRef{}, tgerr.ParseError("invalid message id in %q: %v", original, err)
		}
		return model.ChannelRef{
			Input:       original,
			Key:         model.ChannelKey{Username: parts[0]},
			Display:     "@" + parts[0],
			EmbeddedMsg: msgID,
		}, nil
	}

	return model.ChannelRef{}, tgerr.ParseError("cannot parse channel URL %q", original)
}

// Resolve parses input, then — if it did not already yield a numeric ID —
// asks the platform to resolve it to one, caching the numeric ID for ttl.
// Equal inputs yield equal canonical keys within the cache window (spec
// §8 round-trip property).
func (r *Resolver) Resolve(ctx context.Context, input string) (model.ChannelRef, error) {
	ref, err := Parse(input)
	if err != nil {
		return model.ChannelRef{}, err
	}
	if ref.Key.IsNumeric() {
		return ref, nil
	}

	var cached cachedRef
	cacheKey := "resolve:" + ref.Key.Username
	if err := r.cache.Get(cacheKey, &cached); err == nil {
		ref.Key = cached.Key
		if ref.EmbeddedMsg == 0 {
			ref.EmbeddedMsg = cached.EmbeddedMsg
		}
		return ref, nil
	}

	info, err := r.client.GetChat(ctx, ref.Key)
	if err != nil {
		return model.ChannelRef{}, err
	}
	ref.Key = info.Key
	ref.Display = info.Title

	_ = r.cache.Set(cacheKey, cachedRef{Key: ref.Key, EmbeddedMsg: ref.EmbeddedMsg}, int(r.ttl.Seconds()))
	return ref, nil
}

// FilterChannels resolves every entry in inputs, logging and dropping
// parse failures, and returns only the valid ChannelRefs (spec §4.1
// "Filtering").
func (r *Resolver) FilterChannels(ctx context.Context, inputs []string) []model.ChannelRef {
	out := make([]model.ChannelRef, 0, len(inputs))
	for _, in := range inputs {
		ref, err := r.Resolve(ctx, in)
		if err != nil {
			r.log.Warn("dropping invalid channel identifier", zap.String("input", in), zap.Error(err))
			continue
		}
		out = append(out, ref)
	}
	return out
}
