// Package store holds the ordered entity collections owned by the pub/sub
// engine. None of the types here lock; callers serialize access.
package store

// list is an insertion-ordered collection whose elements are unique under
// same.
type list[T any] struct {
    items []T
    same  func(a, b T) bool
}

func (l *list[T]) add(v T) bool {
    for _, it := range l.items {
        if l.same(it, v) { return false }
    }
    l.items = append(l.items, v)
    return true
}

func (l *list[T]) index(match func(T) bool) int {
    for i, it := range l.items {
        if match(it) { return i }
    }
    return -1
}

func (l *list[T]) find(match func(T) bool) (T, bool) {
    if i := l.index(match); i >= 0 { return l.items[i], true }
    var zero T
    return zero, false
}

func (l *list[T]) remove(match func(T) bool) bool {
    i := l.index(match)
    if i < 0 { return false }
    l.items = append(l.items[:i], l.items[i+1:]...)
    return true
}

func (l *list[T]) len() int { return len(l.items) }

func (l *list[T]) get(i int) (T, bool) {
    if i < 0 || i >= len(l.items) {
        var zero T
        return zero, false
    }
    return l.items[i], true
}

func (l *list[T]) last() (T, bool) { return l.get(len(l.items) - 1) }

func (l *list[T]) all() []T { return append([]T(nil), l.items...) }
