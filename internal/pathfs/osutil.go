package pathfs

import "os"

// osGetwd is a seam so tests could swap it; defaults to os.Getwd.
var osGetwd = os.Getwd
