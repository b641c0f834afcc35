package tile

import (
	"context"
	"errors"
	"iter"
)

var errVisitCancelled = errors.New("visit cancelled")

// IterLocations returns an iterator over locations of all tiles in the tileset.
// Iteration may panic on unrecoverable errors.
func IterLocations(ctx context.Context, r LocationVisitor) iter.Seq2[ID, Location] {
	return func(yield func(ID, Location) bool) {
		err := r.VisitLocations(ctx, func(tileID ID, location Location) error {
			if !yield(tileID, location) {
				return errVisitCancelled
			}
			return nil
		})
		if err != nil && !errors.Is(err, errVisitCancelled) {
			panic(err)
		}
	}
}
