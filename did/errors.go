package did

import (
	"errors"

	"github.com/nspcc-dev/neo-did/idcache"
)

var (
	// ErrInvalidArgument is returned on invalid input parameters. It is the
	// same error as idcache.ErrInvalidArgument.
	ErrInvalidArgument = idcache.ErrInvalidArgument

	// ErrClosed is returned on operations of the closed Manager and its
	// identities.
	ErrClosed = errors.New("identity manager is closed")

	// ErrUnknownIdentity is returned on operations of the destroyed Identity.
	ErrUnknownIdentity = errors.New("unknown identity")
)
