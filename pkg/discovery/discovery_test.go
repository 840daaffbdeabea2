package discovery

import (
    "context"
    "reflect"
    "testing"
)

func TestCombineAndWithout(t *testing.T) {
    a := Func(func(context.Context) []string { return []string{"b:2", "a:1"} })
    b := Func(func(context.Context) []string { return []string{"a:1", "c:3", ""} })
    got := Combine(a, nil, b).Seeds(context.Background())
    if want := []string{"a:1", "b:2", "c:3"}; !reflect.DeepEqual(got, want) {
        t.Fatalf("combine = %#v, want %#v", got, want)
    }
    got = Without(Combine(a, b), "b:2").Seeds(context.Background())
    if want := []string{"a:1", "c:3"}; !reflect.DeepEqual(got, want) {
        t.Fatalf("without = %#v, want %#v", got, want)
    }
}

func TestNormalizeEmpty(t *testing.T) {
    if got := Normalize(nil); got != nil { t.Fatalf("got %#v", got) }
}
