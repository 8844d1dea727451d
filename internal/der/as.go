package der

import (
	"fmt"
	"strings"
)

// As asserts that n is the variant T, failing with ErrUnsupportedStructure
// otherwise.
//
// Example:
//
//	seq, err := der.As[*der.Sequence](node)
func As[T Node](n Node) (T, error) {
	v, ok := n.(T)
	if !ok {
		var zero T
		want := strings.TrimPrefix(fmt.Sprintf("%T", zero), "*der.")
		return zero, Unsupported("expected %s, got %s", want, describeNode(n))
	}
	return v, nil
}

// ChildAs returns child i of a collection as the variant T.
func ChildAs[T Node](c interface{ Child(int) Node }, i int) (T, error) {
	child := c.Child(i)
	if child == nil {
		var zero T
		return zero, Unsupported("missing element %d", i)
	}
	return As[T](child)
}

// IsContext reports whether n carries the context-specific tag number num.
func IsContext(n Node, num int) bool {
	c, ok := n.(*ContextSpecific)
	return ok && c.Number() == num
}

// Unwrap parses the single node inside an explicit [num] tag.
func Unwrap(n Node, num int) (Node, error) {
	c, err := As[*ContextSpecific](n)
	if err != nil {
		return nil, err
	}
	if c.Number() != num {
		return nil, Unsupported("expected [%d], got [%d]", num, c.Number())
	}
	return c.Explicit()
}

func describeNode(n Node) string {
	if n == nil {
		return "nothing"
	}
	return TagName(n.Tag())
}
