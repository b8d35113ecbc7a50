package scanning

import (
	"slices"
	"strings"

	"github.com/contre95/soulscan/src/music"
)

const imagesBatchSize = 100

var (
	releaseImageStems = []string{"cover", "front", "folder", "album"}
	artistImageStems  = []string{"artist", "thumb"}
)

type imagesStep struct{}

func (imagesStep) Step() ScanStep { return ScanStepAssociateImages }

type imageAssociation struct {
	imageID int64
	links   music.ImageLinks
}

// imageDirectory is what the images of one directory are matched against.
type imageDirectory struct {
	tracks []music.Track
	infos  []music.ArtistInfo
}

// Process links every standalone image to the records it illustrates, based
// on its stem and on the tracks and artist.nfo files of its directory.
func (s imagesStep) Process(sc *scanContext) error {
	var lastID int64
	for {
		if err := sc.ctx.Err(); err != nil {
			return err
		}

		var changes []imageAssociation
		var count int
		err := sc.store.Read(sc.ctx, func(tx music.ReadTx) error {
			images, err := tx.FindImagesAfter(lastID, imagesBatchSize)
			if err != nil {
				return err
			}
			count = len(images)
			if count == 0 {
				return nil
			}
			lastID = images[count-1].ID

			directories := make(map[int64]*imageDirectory)
			for _, image := range images {
				dir, ok := directories[image.DirectoryID]
				if !ok {
					dir = &imageDirectory{}
					if dir.tracks, err = tx.FindTracksInDirectory(image.DirectoryID); err != nil {
						return err
					}
					if dir.infos, err = tx.FindArtistInfosInDirectory(image.DirectoryID); err != nil {
						return err
					}
					directories[image.DirectoryID] = dir
				}
				links, err := s.resolve(tx, image, dir)
				if err != nil {
					return err
				}
				if links != image.ImageLinks {
					changes = append(changes, imageAssociation{imageID: image.ID, links: links})
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
				if err := tx.SetImageLinks(change.imageID, change.links); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		sc.stats.Updates += len(changes)
		sc.logger.Debug("AssociateImages: associations updated", "count", len(changes))
	}
}

// resolve computes the links of image:
//   - a track of the directory with the same stem gets it
//   - cover, front, folder and album pictures go to the release shared by the
//     tracks of the directory, and to their medium when the release has several
//   - artist and thumb pictures go to the artist of the directory's
//     artist.nfo, or to the single release artist of its tracks
func (s imagesStep) resolve(tx music.ReadTx, image music.Image, dir *imageDirectory) (music.ImageLinks, error) {
	var links music.ImageLinks
	stem := strings.ToLower(image.FileStem)

	for _, track := range dir.tracks {
		if strings.EqualFold(track.FileStem, image.FileStem) {
			links.TrackID = track.ID
			break
		}
	}

	if slices.Contains(releaseImageStems, stem) {
		releaseID, mediumID := sharedRelease(dir.tracks)
		links.ReleaseID = releaseID
		if releaseID != 0 && mediumID != 0 {
			mediums, err := tx.CountMediums(releaseID)
			if err != nil {
				return links, err
			}
			if mediums > 1 {
				links.MediumID = mediumID
			}
		}
	}

	if slices.Contains(artistImageStems, stem) {
		for _, info := range dir.infos {
			if info.ArtistID != 0 {
				links.ArtistID = info.ArtistID
				break
			}
		}
		if links.ArtistID == 0 {
			artistID, err := sharedReleaseArtist(tx, dir.tracks)
			if err != nil {
				return links, err
			}
			links.ArtistID = artistID
		}
	}
	return links, nil
}

// sharedRelease returns the release, and the medium, every track belonging
// to a release agrees on. It returns 0 for a value the tracks disagree on.
func sharedRelease(tracks []music.Track) (releaseID, mediumID int64) {
	sameMedium := true
	for _, track := range tracks {
		if track.ReleaseID == 0 {
			continue
		}
		if releaseID == 0 {
			releaseID, mediumID = track.ReleaseID, track.MediumID
			continue
		}
		if track.ReleaseID != releaseID {
			return 0, 0
		}
		if track.MediumID != mediumID {
			sameMedium = false
		}
	}
	if !sameMedium {
		mediumID = 0
	}
	return releaseID, mediumID
}

func sharedReleaseArtist(tx music.ReadTx, tracks []music.Track) (int64, error) {
	var artistID int64
	for _, track := range tracks {
		links, err := tx.FindTrackArtistLinks(track.ID)
		if err != nil {
			return 0, err
		}
		for _, link := range links {
			if link.Type != music.TrackArtistLinkReleaseArtist {
				continue
			}
			if artistID != 0 && artistID != link.ArtistID {
				return 0, nil
			}
			artistID = link.ArtistID
		}
	}
	return artistID, nil
}
