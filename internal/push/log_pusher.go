package push

import (
	"context"

	"go.uber.org/zap"

	"github.com/and161185/passkit-server/internal/model"
)

// LogPusher records events instead of contacting a push gateway. It is the
// default until a gateway transport is wired in.
type LogPusher struct{ Log *zap.Logger }

// Push logs ev. Push tokens are never written in full.
func (p LogPusher) Push(_ context.Context, ev model.Event) error {
	p.Log.Info("push event",
		zap.Stringer("kind", ev.Kind),
		zap.String("passTypeId", ev.Pass.PassTypeID),
		zap.String("serial", ev.Pass.SerialNumber),
		zap.String("device", ev.DeviceID),
		zap.String("pushToken", redact(ev.PushToken)),
	)
	return nil
}

func redact(tok string) string {
	if len(tok) <= 8 {
		return "***"
	}
	return tok[:4] + "…" + tok[len(tok)-4:]
}
