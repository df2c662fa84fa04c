package contextmgr

import "errors"

// ErrPromptTruncated is informational, not a failure: it is returned
// alongside a successful Answer (via Answer.TruncationErr) when the
// knowledge or transcript projection included in the prompt was cut
// down to fit its configured byte budget, per spec.md §9's "records
// truncated=true in the prompt metadata".
var ErrPromptTruncated = errors.New("contextmgr: prompt projection truncated to fit byte budget")
