package device

import (
	"context"
	"time"

	"github.com/x402labs/devicegate/logger"
)

// Command is one instruction for a physical device.
type Command struct {
	DeviceID string
	Action   string
	Duration time.Duration
}

// CommandSender delivers commands to devices. Delivery is fire-and-forget
// from the gateway's perspective: a transport failure does not feed back
// into the device state machine.
type CommandSender interface {
	Send(ctx context.Context, cmd Command) error
}

// LogSender is the stub transport: it logs the command and reports
// success. Real deployments plug in a radio/BLE/MQTT bridge here.
type LogSender struct {
	Log logger.Logger
}

func (s LogSender) Send(_ context.Context, cmd Command) error {
	log := s.Log
	if log == nil {
		log = logger.Noop{}
	}
	log.Info("device command dispatched", map[string]any{
		"deviceId": cmd.DeviceID,
		"action":   cmd.Action,
		"duration": cmd.Duration.String(),
	})
	return nil
}
