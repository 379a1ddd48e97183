package workspace

import "errors"

var (
	// ErrInvalidInviteCode is returned by JoinByCode when no workspace carries
	// the given invite code.
	ErrInvalidInviteCode = errors.New("invalid invite code")

	// ErrAlreadyMember is returned by JoinByCode when the current user already
	// holds a membership in the target workspace.
	ErrAlreadyMember = errors.New("already a member of this workspace")

	// ErrNotFound is returned when an update or delete targets a workspace id
	// absent from the cache and the remote store.
	ErrNotFound = errors.New("workspace not found")

	// ErrNoSession is returned by workflows that need the current user's
	// identity when no user is signed in.
	ErrNoSession = errors.New("no authenticated user")
)
