package scanning

import (
	"github.com/contre95/soulscan/src/music"
)

const libraryFieldsBatchSize = 100

type libraryFieldsStep struct{}

func (libraryFieldsStep) Step() ScanStep { return ScanStepUpdateLibraryFields }

// Process points every directory to the library whose root holds it.
func (libraryFieldsStep) Process(sc *scanContext) error {
	for _, library := range sc.settings.Libraries {
		updated, err := sc.processInBatches(
			func(tx music.ReadTx) ([]int64, error) {
				return tx.FindDirectoryIDsWithMismatchedLibrary(library.RootPath, library.ID, libraryFieldsBatchSize)
			},
			func(tx music.WriteTx, ids []int64) error {
				for _, id := range ids {
					if err := tx.SetDirectoryMediaLibrary(id, library.ID); err != nil {
						return err
					}
				}
				return nil
			})
		if err != nil {
			return err
		}
		if updated > 0 {
			sc.logger.Info("UpdateLibraryFields: directories reassigned", "library", library.Name, "count", updated)
		}
	}
	return nil
}
