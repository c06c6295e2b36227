package android

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pgaskin/partsd/saturation"
)

const (
	surfaceFlinger           = "SurfaceFlinger"
	surfaceComposer          = "android.ui.ISurfaceComposer"
	surfaceFlingerSaturation = 1022
)

// SurfaceFlinger sets the display saturation with a SurfaceFlinger binder
// transaction.
type SurfaceFlinger struct {
	Runner Runner
}

var _ saturation.Compositor = SurfaceFlinger{}

func (s SurfaceFlinger) SetSaturation(ctx context.Context, v float32) error {
	out, err := s.Runner.Run(ctx, "service list")
	if err != nil {
		return fmt.Errorf("list services: %w", err)
	}
	if iface, ok := ParseServices(out)[surfaceFlinger]; !ok || iface != surfaceComposer {
		return saturation.ErrNoCompositor
	}
	out, err = s.Runner.Run(ctx, "service call "+surfaceFlinger+" "+strconv.Itoa(surfaceFlingerSaturation)+" f "+strconv.FormatFloat(float64(v), 'f', -1, 32))
	if err != nil {
		return err
	}
	if !strings.HasPrefix(out, "Result: Parcel(") {
		return fmt.Errorf("unexpected transaction result %q", out)
	}
	return nil
}
