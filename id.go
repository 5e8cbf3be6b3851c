package tokenledger

import "github.com/xraph/tokenledger/id"

// Principal is the opaque identity of a caller.
type Principal = id.Principal

// Prefix identifies the identity type encoded in a TypeID.
type Prefix = id.Prefix
