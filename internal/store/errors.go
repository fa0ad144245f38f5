package store

import "errors"

// ErrProjectNotFound is returned when a Registry operation targets a project
// whose shard has never been created.
var ErrProjectNotFound = errors.New("store: project not found")

// ErrNotFound is returned when a lookup (interview by conversation id) finds
// no matching row.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicateConversation is returned by Commit when the diff's interview
// row collides with a row with
// the same conversation_id — the idempotency key Pipeline
// relies on.
var ErrDuplicateConversation = errors.New("store: conversation already recorded")
