package scanning

import (
	"strings"
	"unicode"

	"github.com/contre95/soulscan/src/music"
)

const lyricsBatchSize = 100

type lyricsStep struct{}

func (lyricsStep) Step() ScanStep { return ScanStepAssociateExternalLyrics }

type lyricsAssociation struct {
	lyricsID int64
	trackID  int64
}

// Process links every external lyrics file to the track of its directory
// sharing its stem, and unlinks it when no such track remains.
func (s lyricsStep) Process(sc *scanContext) error {
	var lastID int64
	for {
		if err := sc.ctx.Err(); err != nil {
			return err
		}

		var changes []lyricsAssociation
		var count int
		err := sc.store.Read(sc.ctx, func(tx music.ReadTx) error {
			batch, err := tx.FindExternalTrackLyricsAfter(lastID, lyricsBatchSize)
			if err != nil {
				return err
			}
			count = len(batch)
			if count == 0 {
				return nil
			}
			lastID = batch[count-1].ID

			tracksByDirectory := make(map[int64][]music.Track)
			for _, lyrics := range batch {
				tracks, ok := tracksByDirectory[lyrics.DirectoryID]
				if !ok {
					tracks, err = tx.FindTracksInDirectory(lyrics.DirectoryID)
					if err != nil {
						return err
					}
					tracksByDirectory[lyrics.DirectoryID] = tracks
				}
				trackID := s.matchTrack(sc, lyrics, tracks)
				if trackID != lyrics.TrackID {
					changes = append(changes, lyricsAssociation{lyricsID: lyrics.ID, trackID: trackID})
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		if count == 0 {
			return nil
		}
		sc.advance(count)
		if len(changes) == 0 {
			continue
		}

		err = sc.store.Write(sc.ctx, func(tx music.WriteTx) error {
			for _, change := range changes {
				if err := tx.SetTrackLyricsTrack(change.lyricsID, change.trackID); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		sc.stats.Updates += len(changes)
		sc.logger.Debug("AssociateExternalLyrics: associations updated", "count", len(changes))
	}
}

// matchTrack returns the id of the track lyrics belong to, or 0. A track
// sharing the exact stem wins over one matching the stem without its
// language code. When several tracks match, the last one wins.
func (s lyricsStep) matchTrack(sc *scanContext, lyrics music.TrackLyrics, tracks []music.Track) int64 {
	stem := lyrics.FileStem
	matched := tracksWithStem(tracks, stem)
	if len(matched) == 0 {
		if bare, ok := StripLanguageSuffix(stem); ok {
			matched = tracksWithStem(tracks, bare)
		}
	}
	if len(matched) == 0 {
		return 0
	}
	if len(matched) > 1 {
		paths := make([]string, 0, len(matched))
		for _, track := range matched {
			paths = append(paths, track.AbsoluteFilePath)
		}
		sc.logger.Warn("AssociateExternalLyrics: lyrics match several tracks, keeping the last", "path", lyrics.AbsoluteFilePath, "tracks", paths)
	}
	return matched[len(matched)-1].ID
}

func tracksWithStem(tracks []music.Track, stem string) []music.Track {
	var matched []music.Track
	for _, track := range tracks {
		if track.FileStem == stem {
			matched = append(matched, track)
		}
	}
	return matched
}

// StripLanguageSuffix removes a trailing ".xx" or ".xxx" language code from a
// file stem, as in "song.en" or "song.fra".
func StripLanguageSuffix(stem string) (string, bool) {
	dot := strings.LastIndexByte(stem, '.')
	if dot <= 0 {
		return stem, false
	}
	code := stem[dot+1:]
	if len(code) < 2 || len(code) > 3 {
		return stem, false
	}
	for _, r := range code {
		if !unicode.IsLetter(r) || r > unicode.MaxASCII {
			return stem, false
		}
	}
	return stem[:dot], true
}
