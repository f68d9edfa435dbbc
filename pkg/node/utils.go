package node

import (
	"net"
	"strings"
)

// NormalizeHostPort cuts the http:// https:// prefixes from the input address
// and adds a default port.
func NormalizeHostPort(addr, defPort string) string {
	if rest, ok := strings.CutPrefix(addr, "http://"); ok {
		addr = rest
	} else if rest, ok := strings.CutPrefix(addr, "https://"); ok {
		addr = rest
	}

	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}

	return addr + ":" + defPort
}

// OwnerForEntity returns the normalized address of the primary observer for
// an entity and whether this node is one of its observers. ok is false when
// no observer is known.
func (n *Node) OwnerForEntity(id string) (ownerHP string, owned, ok bool) {
	if n.ring.Len() == 0 {
		return NormalizeHostPort(n.addr, "8080"), true, true
	}
	owners := n.ring.LookupN([]byte(id), n.rf)
	if len(owners) == 0 {
		return "", false, false
	}
	for _, o := range owners {
		if o == n.self {
			return NormalizeHostPort(n.addr, "8080"), true, true
		}
	}
	ownerAddr, ok := n.ring.Addr(owners[0])
	if !ok || ownerAddr == "" {
		return "", false, false
	}
	return NormalizeHostPort(ownerAddr, "8080"), false, true
}
