package hyphen

import "github.com/wippyai/hyphen/iobuf"

// IO is the byte boundary routines read and write through.
type IO = iobuf.IO

// Storage is the contiguous region behind a buffer IO.
type Storage = iobuf.Storage
