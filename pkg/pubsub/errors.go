package pubsub

import "errors"

var (
    ErrNilTopology     = errors.New("pubsub: nil topology")
    ErrNegativeHistory = errors.New("pubsub: negative message history limit")
)
