package lsp

import "time"

// timeNowUnixNano is a test seam for Client.touch/LastUsed.
var timeNowUnixNano = func() int64 { return time.Now().UnixNano() }
