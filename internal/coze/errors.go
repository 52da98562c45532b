package coze

import "errors"

var (
	// ErrHandleMissing means the create call succeeded but no candidate field held an id.
	ErrHandleMissing = errors.New("no conversation id in create response")
	// ErrTransport covers network failures and bodies that are not JSON.
	ErrTransport = errors.New("coze transport failure")
)
