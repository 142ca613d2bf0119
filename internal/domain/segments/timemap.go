package segments

import (
	"fmt"

	"github.com/forPelevin/pinpoint/internal/types"
)

// ToAbsolute shifts a clip-relative range by the clip's absolute start.
// A mapped range that violates the TimeRange invariant is an error.
func ToAbsolute(clipStartSec float64, rel types.TimeRange) (types.TimeRange, error) {
	abs, err := types.NewTimeRange(clipStartSec+rel.StartSec(), clipStartSec+rel.EndSec())
	if err != nil {
		return types.TimeRange{}, fmt.Errorf("map clip-relative %s from %.3fs: %w", rel, clipStartSec, err)
	}
	return abs, nil
}
