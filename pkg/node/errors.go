package node

import "errors"

var (
    ErrNilMesh      = errors.New("node: nil Mesh")
    ErrNilLogger    = errors.New("node: nil Logger")
    ErrBadInterval  = errors.New("node: negative reconcile interval")
    ErrEmptyService = errors.New("node: empty service name")
    ErrNotStarted   = errors.New("node: not started")
    ErrStopped      = errors.New("node: stopped")
)
