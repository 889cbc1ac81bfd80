package domain

import "errors"

// ErrNotFound is returned by repositories when the requested record does not exist
var ErrNotFound = errors.New("record not found")

// ErrStatusConflict is returned by a conditional status update whose precondition no longer holds
var ErrStatusConflict = errors.New("status precondition failed")
