package protocol

import (
    "fmt"
    "strings"
    "unicode/utf8"
)

// Kind is the one-byte message tag.
type Kind uint8

// Tag values on the wire. Peers must agree on this mapping.
const (
    KindSubscribe   Kind = 0
    KindUnsubscribe Kind = 1
    KindPublish     Kind = 2
    KindInfo        Kind = 3
)

func (k Kind) String() string {
    switch k {
    case KindSubscribe:
        return "Subscribe"
    case KindUnsubscribe:
        return "Unsubscribe"
    case KindPublish:
        return "Publish"
    case KindInfo:
        return "Info"
    default:
        return fmt.Sprintf("Kind(%d)", uint8(k))
    }
}

// Valid reports whether k is one of the known tags.
func (k Kind) Valid() bool { return k <= KindInfo }

// CarriesInfo reports whether messages of this kind have a text payload.
func (k Kind) CarriesInfo() bool { return k == KindPublish || k == KindInfo }

// Message is a single protocol message. Info is nil for Subscribe and
// Unsubscribe and non-nil for Publish and Info.
type Message struct {
    Kind       Kind
    ServiceKey ServiceKey
    Info       *string
}

// NewSubscribe builds a Subscribe message.
func NewSubscribe(key ServiceKey) Message { return Message{Kind: KindSubscribe, ServiceKey: key} }

// NewUnsubscribe builds an Unsubscribe message.
func NewUnsubscribe(key ServiceKey) Message { return Message{Kind: KindUnsubscribe, ServiceKey: key} }

// NewPublish builds a Publish message carrying text.
func NewPublish(key ServiceKey, text string) Message {
    return Message{Kind: KindPublish, ServiceKey: key, Info: &text}
}

// NewInfo builds an Info message carrying text.
func NewInfo(key ServiceKey, text string) Message {
    return Message{Kind: KindInfo, ServiceKey: key, Info: &text}
}

// Text returns the info payload or the empty string.
func (m Message) Text() string {
    if m.Info == nil { return "" }
    return *m.Info
}

// Equal compares two messages by value, including payload presence.
func (m Message) Equal(o Message) bool {
    if m.Kind != o.Kind || m.ServiceKey != o.ServiceKey { return false }
    if (m.Info == nil) != (o.Info == nil) { return false }
    return m.Info == nil || *m.Info == *o.Info
}

// String renders the message for diagnostic logs.
func (m Message) String() string {
    var sb strings.Builder
    sb.WriteString(m.Kind.String())
    sb.WriteString(" message for service ")
    sb.WriteString(m.ServiceKey.String())
    sb.WriteString(".")
    if m.Info != nil {
        sb.WriteString(" Info: ")
        sb.WriteString(*m.Info)
        sb.WriteString(".")
    }
    return sb.String()
}

// Encode frames m as [kind][key][utf-8 info]. The info length is implicit, so
// the transport must deliver exactly one frame per message.
func Encode(m Message) []byte {
    n := HeaderLen
    if m.Info != nil { n += len(*m.Info) }
    buf := make([]byte, 0, n)
    buf = append(buf, byte(m.Kind))
    buf = append(buf, m.ServiceKey[:]...)
    if m.Info != nil {
        buf = append(buf, *m.Info...)
    }
    return buf
}

// Decode parses a frame produced by Encode. Every failure wraps ErrFraming.
func Decode(b []byte) (Message, error) {
    if len(b) < HeaderLen {
        return Message{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrFraming, len(b), HeaderLen)
    }
    kind := Kind(b[0])
    if !kind.Valid() {
        return Message{}, fmt.Errorf("%w: unknown kind tag %d", ErrFraming, b[0])
    }
    m := Message{Kind: kind}
    copy(m.ServiceKey[:], b[1:HeaderLen])
    rest := b[HeaderLen:]
    if !kind.CarriesInfo() {
        if len(rest) != 0 {
            return Message{}, fmt.Errorf("%w: %s frame with %d trailing bytes", ErrFraming, kind, len(rest))
        }
        return m, nil
    }
    if !utf8.Valid(rest) {
        return Message{}, fmt.Errorf("%w: info payload is not valid utf-8", ErrFraming)
    }
    text := string(rest)
    m.Info = &text
    return m, nil
}
