package mqtt

import "errors"

var (
	// ErrConnectionFailed indicates the initial broker connection could not be established.
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	// ErrPublishFailed indicates a message could not be delivered to the broker.
	ErrPublishFailed = errors.New("mqtt: publish failed")
)
