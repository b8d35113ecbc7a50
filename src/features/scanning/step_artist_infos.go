package scanning

import (
	"github.com/contre95/soulscan/src/features/scanning/filescan"
	"github.com/contre95/soulscan/src/music"
)

const artistInfosBatchSize = 100

type artistInfosStep struct{}

func (artistInfosStep) Step() ScanStep { return ScanStepReconcileArtistInfos }

type artistInfoAssociation struct {
	infoID   int64
	artistID int64
}

// Process links every artist.nfo to its artist again. Artists come and go
// with the tracks referencing them, so the link set when the file was scanned
// may be missing or stale.
func (s artistInfosStep) Process(sc *scanContext) error {
	var lastID int64
	for {
		if err := sc.ctx.Err(); err != nil {
			return err
		}

		var changes []artistInfoAssociation
		var count int
		err := sc.store.Read(sc.ctx, func(tx music.ReadTx) error {
			infos, err := tx.FindArtistInfosAfter(lastID, artistInfosBatchSize)
			if err != nil {
				return err
			}
			count = len(infos)
			if count == 0 {
				return nil
			}
			lastID = infos[count-1].ID

			for _, info := range infos {
				artist, err := filescan.ResolveArtist(tx, info.Name, info.MBID)
				if err != nil {
					return err
				}
				var artistID int64
				if artist != nil {
					artistID = artist.ID
				}
				if artistID != info.ArtistID {
					changes = append(changes, artistInfoAssociation{infoID: info.ID, artistID: artistID})
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
				if err := tx.SetArtistInfoArtist(change.infoID, change.artistID); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		sc.stats.Updates += len(changes)
		sc.logger.Debug("ReconcileArtistInfos: associations updated", "count", len(changes))
	}
}
