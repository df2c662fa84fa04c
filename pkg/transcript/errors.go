package transcript

import "errors"

// ErrOutOfOrderAppend is returned when Append receives a batch_seq that
// does not immediately follow the last appended sequence.
var ErrOutOfOrderAppend = errors.New("transcript: out-of-order append")
