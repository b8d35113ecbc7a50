package scanning

import (
	"slices"

	"github.com/contre95/soulscan/src/features/scanning/filescan"
	"github.com/contre95/soulscan/src/music"
)

const playListsBatchSize = 50

type playListsStep struct{}

func (playListsStep) Step() ScanStep { return ScanStepAssociatePlayListTracks }

type playListTracks struct {
	playListID int64
	trackIDs   []int64
}

// Process resolves the entries of every playlist file to tracks.
func (s playListsStep) Process(sc *scanContext) error {
	var lastID int64
	for {
		if err := sc.ctx.Err(); err != nil {
			return err
		}

		var changes []playListTracks
		var scanErrors []filescan.ScanError
		var count int
		err := sc.store.Read(sc.ctx, func(tx music.ReadTx) error {
			playLists, err := tx.FindPlayListFilesAfter(lastID, playListsBatchSize)
			if err != nil {
				return err
			}
			count = len(playLists)
			if count == 0 {
				return nil
			}
			lastID = playLists[count-1].ID

			for _, playList := range playLists {
				trackIDs, errs, err := s.resolve(tx, playList)
				if err != nil {
					return err
				}
				scanErrors = append(scanErrors, errs...)

				current, err := tx.FindPlayListFileTrackIDs(playList.ID)
				if err != nil {
					return err
				}
				if !slices.Equal(current, trackIDs) {
					changes = append(changes, playListTracks{playListID: playList.ID, trackIDs: trackIDs})
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
		for _, scanErr := range scanErrors {
			sc.recordError(scanErr)
		}
		sc.advance(count)
		if len(changes) == 0 {
			continue
		}

		err = sc.store.Write(sc.ctx, func(tx music.WriteTx) error {
			for _, change := range changes {
				if err := tx.SetPlayListFileTracks(change.playListID, change.trackIDs); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
}

func (s playListsStep) resolve(tx music.ReadTx, playList music.PlayListFile) ([]int64, []filescan.ScanError, error) {
	var trackIDs []int64
	var errs []filescan.ScanError
	for _, entry := range playList.Files {
		path := filescan.ResolvePlayListEntry(playList.AbsoluteFilePath, entry)
		track, err := tx.FindTrackByPath(path)
		if err != nil {
			return nil, nil, err
		}
		if track == nil {
			errs = append(errs, &filescan.PlayListFilePathMissingError{Path: playList.AbsoluteFilePath, Entry: entry})
			continue
		}
		trackIDs = append(trackIDs, track.ID)
	}
	if len(playList.Files) > 0 && len(trackIDs) == 0 {
		errs = append(errs, &filescan.PlayListFileAllPathesMissingError{Path: playList.AbsoluteFilePath})
	}
	return trackIDs, errs, nil
}
