package mesh

import "github.com/amirimatin/go-meshpubsub/pkg/protocol"

// DistCmp compares the XOR distances a->target and b->target.
// Returns -1 if a is closer, 1 if b is closer and 0 if they are equal.
func DistCmp(target, a, b protocol.ServiceKey) int {
    for i := range target {
        da := a[i] ^ target[i]
        db := b[i] ^ target[i]
        if da > db {
            return 1
        } else if da < db {
            return -1
        }
    }
    return 0
}

// Closest returns the client whose key is nearest to key. Equal distances are
// broken by the lower instance ID so every peer picks the same client from the
// same member set. ok is false when clients is empty.
func Closest(key protocol.ServiceKey, clients []Client) (best Client, ok bool) {
    for _, c := range clients {
        if !ok {
            best, ok = c, true
            continue
        }
        switch DistCmp(key, c.Key, best.Key) {
        case -1:
            best = c
        case 0:
            if c.Instance.ID < best.Instance.ID { best = c }
        }
    }
    return best, ok
}

// SameID is the identity used by the bundled topologies: two clients are the
// same peer when their instance IDs match.
func SameID(a, b Client) bool { return a.Instance.ID == b.Instance.ID }
