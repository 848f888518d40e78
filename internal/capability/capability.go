// Package capability implements the Capability Prober (spec §4.2):
// determining read/write/forward access for a resolved channel and
// caching the result for a TTL window.
package capability

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"tgforward/internal/model"
	"tgforward/internal/platform"
	"tgforward/internal/tgcache"
)

const (
	cacheSizeBytes = 2 * 1024 * 1024
	// DefaultTTL is the 30-minute default from spec §3.
	DefaultTTL = 30 * time.Minute
)

// Prober probes and caches CapabilityRecords.
type Prober struct {
	client platform.Client
	cache  *tgcache.Cache
	ttl    time.Duration
	log    *zap.Logger
}

// New builds a Prober backed by client.
func New(client platform.Client, log *zap.Logger, ttl time.Duration) *Prober {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Prober{
		client: client,
		cache:  tgcache.New(cacheSizeBytes),
		ttl:    ttl,
		log:    log.Named("Prober"),
	}
}

// Probe returns the CapabilityRecord for key, from cache if not expired,
// otherwise by querying the platform.
func (p *Prober) Probe(ctx context.Context, key model.ChannelKey) (model.CapabilityRecord, error) {
	cacheKey := key.String()
	var rec model.CapabilityRecord
	if err := p.cache.Get(cacheKey, &rec); err == nil {
		if !rec.Expired(time.Now(), p.ttl) {
			return rec, nil
		}
		p.cache.Delete(cacheKey)
	}

	info, err := p.client.GetChat(ctx, key)
	if err != nil {
		return model.CapabilityRecord{}, err
	}

	rec = model.CapabilityRecord{
		Readable:       p.probeReadable(ctx, key),
		Writable:       deriveWritable(info),
		ForwardAllowed: !info.HasProtectedContent,
		FetchedAt:      time.Now(),
	}
	_ = p.cache.Set(cacheKey, rec, int(p.ttl.Seconds()))
	p.log.Debug("probed capability",
		zap.String("channel", cacheKey),
		zap.Bool("readable", rec.Readable),
		zap.Bool("writable", rec.Writable),
		zap.Bool("forward_allowed", rec.ForwardAllowed))
	return rec, nil
}

// probeReadable implements spec §4.2's read-capability check: a bounded
// single-message history read (GetMessages with no ids fetches the
// latest message), mirroring the probe original_source performs rather
// than inferring readability from a successful chat-metadata lookup —
// a chat can be resolvable and still refuse a history read.
func (p *Prober) probeReadable(ctx context.Context, key model.ChannelKey) bool {
	_, err := p.client.GetMessages(ctx, key, nil)
	return err == nil
}

// deriveWritable implements spec §4.2: "writable means current account
// may post; derived from platform permissions (non-channel chats) or an
// administrator-role check (channels)".
func deriveWritable(info *platform.ChatInfo) bool {
	if info.IsChannel {
		return info.AdminRights != nil && info.AdminRights.IsAdmin && info.AdminRights.CanPost
	}
	return info.CanSendToIt
}

// SortByForwardAllowed orders targets with forward_allowed=true first,
// stable on ties — used to prefer an unrestricted target as the
// first/canonical delivery in download-upload fan-out (spec §4.2, §4.8).
func SortByForwardAllowed(targets []model.ChannelKey, caps map[model.ChannelKey]model.CapabilityRecord) []model.ChannelKey {
	sorted := make([]model.ChannelKey, len(targets))
	copy(sorted, targets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return caps[sorted[i]].ForwardAllowed && !caps[sorted[j]].ForwardAllowed
	})
	return sorted
}
