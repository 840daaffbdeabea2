package protocol

import (
    "errors"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestKindTags(t *testing.T) {
    // Wire compatibility depends on these exact values.
    assert.Equal(t, byte(0), byte(KindSubscribe))
    assert.Equal(t, byte(1), byte(KindUnsubscribe))
    assert.Equal(t, byte(2), byte(KindPublish))
    assert.Equal(t, byte(3), byte(KindInfo))
    assert.Equal(t, 20, KeyLen)
    assert.False(t, Kind(4).Valid())
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
    key := HashServiceName("weather")
    empty := ""
    cases := []struct {
        name string
        msg  Message
    }{
        {"subscribe", NewSubscribe(key)},
        {"unsubscribe", NewUnsubscribe(key)},
        {"publish", NewPublish(key, "sunny")},
        {"info", NewInfo(key, "rain at 5")},
        {"publish empty", Message{Kind: KindPublish, ServiceKey: key, Info: &empty}},
        {"info utf8", NewInfo(key, "ñandú ☀")},
    }
    for _, c := range cases {
        t.Run(c.name, func(t *testing.T) {
            frame := Encode(c.msg)
            got, err := Decode(frame)
            require.NoError(t, err)
            assert.True(t, c.msg.Equal(got), "got %v want %v", got, c.msg)
        })
    }
}

func TestEncode_Layout(t *testing.T) {
    key := HashServiceName("news")
    frame := Encode(NewPublish(key, "hi"))
    require.Len(t, frame, HeaderLen+2)
    assert.Equal(t, byte(KindPublish), frame[0])
    assert.Equal(t, key[:], frame[1:HeaderLen])
    assert.Equal(t, "hi", string(frame[HeaderLen:]))

    assert.Len(t, Encode(NewSubscribe(key)), HeaderLen)
}

func TestDecode_Errors(t *testing.T) {
    key := HashServiceName("jobs")
    short := Encode(NewSubscribe(key))[:HeaderLen-1]
    badTag := Encode(NewSubscribe(key))
    badTag[0] = 9
    trailing := append(Encode(NewUnsubscribe(key)), 'x')
    badUTF8 := append(Encode(NewInfo(key, "")), 0xff, 0xfe)

    for name, b := range map[string][]byte{
        "empty":    nil,
        "short":    short,
        "bad tag":  badTag,
        "trailing": trailing,
        "bad utf8": badUTF8,
    } {
        t.Run(name, func(t *testing.T) {
            _, err := Decode(b)
            require.Error(t, err)
            assert.True(t, errors.Is(err, ErrFraming))
        })
    }
}

func TestHashServiceName(t *testing.T) {
    a := HashServiceName("hype-news")
    b := HashServiceName("hype-news")
    c := HashServiceName("hype-sports")
    assert.Equal(t, a, b)
    assert.NotEqual(t, a, c)

    parsed, err := ParseKey(a.String())
    require.NoError(t, err)
    assert.Equal(t, a, parsed)

    _, err = ParseKey("abcd")
    assert.Error(t, err)
}

func TestMessage_String(t *testing.T) {
    key := HashServiceName("weather")
    assert.Equal(t, "Subscribe message for service "+key.String()+".", NewSubscribe(key).String())
    assert.Equal(t, "Info message for service "+key.String()+". Info: sunny.", NewInfo(key, "sunny").String())
}
