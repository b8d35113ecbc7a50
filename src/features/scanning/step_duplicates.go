package scanning

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/contre95/soulscan/src/music"
	"github.com/gosimple/unidecode"
)

const duplicatesBatchSize = 500

type duplicatesStep struct{}

func (duplicatesStep) Step() ScanStep { return ScanStepCheckForDuplicatedFiles }

type trackKey struct {
	id   int64
	path string
}

// Process groups tracks that share a normalized path, a file size or a
// track MBID. Groups are independent: one track may appear in several.
func (s duplicatesStep) Process(sc *scanContext) error {
	byPath := make(map[string][]trackKey)
	bySize := make(map[int64][]trackKey)
	byMBID := make(map[string][]trackKey)

	err := sc.store.Read(sc.ctx, func(tx music.ReadTx) error {
		total, err := tx.CountTracks()
		if err != nil {
			return err
		}
		sc.setTotal(total)

		var lastID int64
		for {
			if err := sc.ctx.Err(); err != nil {
				return err
			}
			tracks, err := tx.FindTracksAfter(lastID, duplicatesBatchSize)
			if err != nil {
				return err
			}
			if len(tracks) == 0 {
				return nil
			}
			lastID = tracks[len(tracks)-1].ID
			for _, track := range tracks {
				key := trackKey{id: track.ID, path: track.AbsoluteFilePath}
				normalized := NormalizedPathKey(track.AbsoluteFilePath)
				byPath[normalized] = append(byPath[normalized], key)
				if track.FileSize > 0 {
					bySize[track.FileSize] = append(bySize[track.FileSize], key)
				}
				if track.MBID != "" {
					byMBID[track.MBID] = append(byMBID[track.MBID], key)
				}
			}
			sc.advance(len(tracks))
		}
	})
	if err != nil {
		return err
	}

	var groups []DuplicateGroup
	groups = appendGroups(groups, DuplicateSamePath, byPath)
	groups = appendGroups(groups, DuplicateSameFileSize, stringKeys(bySize))
	groups = appendGroups(groups, DuplicateSameTrackMBID, byMBID)
	sc.stats.Duplicates = groups

	for _, group := range groups {
		sc.logger.Debug("CheckForDuplicatedFiles: duplicate group", "reason", group.Reason, "key", group.Key, "paths", group.Paths)
	}
	if len(groups) > 0 {
		sc.logger.Info("CheckForDuplicatedFiles: found duplicate groups", "count", len(groups))
	}
	return nil
}

// NormalizedPathKey folds a track path so that copies differing only in
// extension, case or diacritics share a key.
func NormalizedPathKey(path string) string {
	path = filepath.Clean(path)
	path = strings.TrimSuffix(path, filepath.Ext(path))
	return strings.ToLower(unidecode.Unidecode(path))
}

func stringKeys(m map[int64][]trackKey) map[string][]trackKey {
	out := make(map[string][]trackKey, len(m))
	for k, v := range m {
		out[strconv.FormatInt(k, 10)] = v
	}
	return out
}

func appendGroups(groups []DuplicateGroup, reason DuplicateReason, buckets map[string][]trackKey) []DuplicateGroup {
	keys := make([]string, 0, len(buckets))
	for key, tracks := range buckets {
		if len(tracks) >= 2 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		group := DuplicateGroup{Reason: reason, Key: key}
		for _, track := range buckets[key] {
			group.TrackIDs = append(group.TrackIDs, track.id)
			group.Paths = append(group.Paths, track.path)
		}
		groups = append(groups, group)
	}
	return groups
}
