// Package reassembler implements the Album Reassembler (spec §4.6): given
// a set of downloaded artifacts and their side-file metadata, it
// reconstructs album groupings and applies the caption-placement rule.
//
// Grounded on assember.py (original_source/tg_forwarder/uploader/assember.py),
// which groups pending uploads by media-group id and keeps a single
// caption per group; this package applies the same rule against
// downloader.MetadataStore records instead of live message objects.
package reassembler

import (
	"sort"

	"tgforward/internal/model"
)

// Grouped is the assemble() result: albums ordered by ascending message
// id within each group, plus standalone singles.
type Grouped struct {
	Albums  [][]model.LocalArtifact
	Singles []model.LocalArtifact
}

// Assemble groups artifacts sharing an album key and applies the
// caption-placement rule: the first member (by ascending message id)
// keeps the first non-empty caption found among the group; all other
// members' captions are cleared. Singles are returned unchanged.
func Assemble(artifacts []model.LocalArtifact) Grouped {
	var out Grouped
	groups := map[string][]model.LocalArtifact{}

	for _, a := range artifacts {
		if a.Message.InAlbum() {
			groups[a.Message.AlbumKey] = append(groups[a.Message.AlbumKey], a)
		} else {
			out.Singles = append(out.Singles, a)
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		members := groups[key]
		sort.Slice(members, func(i, j int) bool {
			return members[i].Message.MessageID < members[j].Message.MessageID
		})

		caption := ""
		for _, m := range members {
			if m.Caption != "" {
				caption = m.Caption
				break
			}
		}
		for i := range members {
			if i == 0 {
				members[i].Caption = caption
			} else {
				members[i].Caption = ""
			}
		}
		out.Albums = append(out.Albums, members)
	}

	return out
}
