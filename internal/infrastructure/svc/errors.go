package svc

import "errors"

// ErrNoQuotes 错误：没有可用的计价币
var ErrNoQuotes = errors.New("no quote currencies configured")
