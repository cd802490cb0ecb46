package service

import (
	"context"

	"github.com/benardelia/fcm-notification-server/internal/domain"
	"github.com/benardelia/fcm-notification-server/internal/store"
	"github.com/benardelia/fcm-notification-server/internal/util"
)

// RegisterDevice upserts the device for the push token and fires the
// registration webhook. Re-registering an existing token re-activates it.
func (d *Dispatcher) RegisterDevice(ctx context.Context, req domain.DeviceRegisterRequest) (store.Device, error) {
	dev, err := d.Store.RegisterDevice(ctx, store.DeviceRegistration{
		ProfileID:   util.NewProfileID(),
		DeviceID:    util.NewDeviceID(),
		PhoneNumber: util.NormalizePhone(req.PhoneNumber),
		DeviceType:  req.DeviceType,
		PushToken:   req.PushToken,
		AppVersion:  req.AppVersion,
		Now:         d.Now(),
	})
	if err != nil {
		return store.Device{}, err
	}

	if d.Events != nil {
		d.Events.DispatchAsync(domain.EventDeviceRegistered, map[string]any{
			"device_id":    dev.ID,
			"profile_id":   dev.ProfileID,
			"phone_number": dev.PhoneNumber,
			"device_type":  dev.DeviceType,
		}, req.TenantID)
	}
	return dev, nil
}
