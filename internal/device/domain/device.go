package domain

import "time"

// Device is a client device bound to a user. UniqueDeviceID is the stable
// client-supplied identifier; the biometric public key and push token are
// enrolled after creation and may be empty.
type Device struct {
	ID                 string
	UserID             string
	UniqueDeviceID     string
	BiometricPublicKey string // PEM; empty means biometric login is not possible on this device
	PushToken          string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// BiometricCapable reports whether the device can be used for biometric login.
func (d *Device) BiometricCapable() bool {
	return d != nil && d.BiometricPublicKey != ""
}
