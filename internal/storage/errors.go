package storage

import "errors"

var ErrDisabled = errors.New("document storage is not configured")
