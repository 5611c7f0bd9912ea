package bot

import "errors"

// ErrInvalidPost reports generator output that cannot become a post, or an
// advance-scheduled post dated in the past. It signals a defect in the
// generator and aborts the whole scheduling pass.
var ErrInvalidPost = errors.New("invalid post")
