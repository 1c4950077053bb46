package conversation

import "errors"

// ErrNotFound indicates the requested conversation does not exist or is not
// owned by the requesting user. Check with errors.Is.
var ErrNotFound = errors.New("conversation not found")
