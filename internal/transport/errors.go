package transport

import "errors"

var ErrNotConnected = errors.New("channel is not connected")
