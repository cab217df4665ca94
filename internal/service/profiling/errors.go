package profiling

import (
	"errors"

	"github.com/lifecraft/profiler/backend/internal/model/module"
)

// Caller errors. Handlers map these to 4xx responses.
var (
	ErrMissingSessionID = errors.New("session id is required")
	ErrEmptyInput       = errors.New("message is empty")
	ErrUnknownModule    = module.ErrUnknownModule
	ErrModuleMismatch   = errors.New("session belongs to a different module")
	ErrDialogueClosed   = errors.New("dialogue accepts no further turns")
	ErrConfirmNotReady  = errors.New("session cannot be confirmed yet")
)
