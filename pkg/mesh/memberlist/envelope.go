package memberlist

import (
    "errors"
    "fmt"

    "github.com/multiformats/go-varint"
)

// ErrEnvelope reports a user message that does not carry a valid sender
// envelope.
var ErrEnvelope = errors.New("memberlist: malformed envelope")

// memberlist user messages carry no sender, so every frame is wrapped as
// [uvarint len(sender)][sender][frame].
func wrap(sender string, frame []byte) []byte {
    hdr := varint.ToUvarint(uint64(len(sender)))
    buf := make([]byte, 0, len(hdr)+len(sender)+len(frame))
    buf = append(buf, hdr...)
    buf = append(buf, sender...)
    return append(buf, frame...)
}

func unwrap(b []byte) (sender string, frame []byte, err error) {
    n, read, err := varint.FromUvarint(b)
    if err != nil {
        return "", nil, fmt.Errorf("%w: %v", ErrEnvelope, err)
    }
    rest := b[read:]
    if n == 0 || n > uint64(len(rest)) {
        return "", nil, fmt.Errorf("%w: sender length %d exceeds %d bytes", ErrEnvelope, n, len(rest))
    }
    return string(rest[:n]), rest[n:], nil
}
