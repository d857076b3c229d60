package readers

import (
	"context"

	"github.com/chrissnell/lantern/internal/feed"
	"github.com/chrissnell/lantern/internal/types"
)

// Forward decodes a JSON reading and hands it to the distributor. It blocks until
// the distributor accepts the reading or ctx is done.
func Forward(ctx context.Context, data []byte, distributor chan<- types.Reading) error {
	r, err := feed.DecodeReading(data)
	if err != nil {
		return err
	}
	select {
	case distributor <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
