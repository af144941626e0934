// README: Rider entity subset used for ownership checks and offer payloads.
package rider

import (
	"errors"

	"tripnow/internal/types"
)

var ErrNotFound = errors.New("rider not found")

type Rider struct {
	ID     types.ID
	Name   string
	Email  string
	Photo  string
	Rating float64 // 0 when unrated
}
