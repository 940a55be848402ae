package service

import "errors"

// ErrMissingDependency is returned by New when a collaborator is nil.
var ErrMissingDependency = errors.New("service: missing dependency")
