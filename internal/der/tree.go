package der

// TreeNode is a serializable view of a node for JSON and CBOR output.
type TreeNode struct {
	Tag      string     `json:"tag" cbor:"tag"`
	TagByte  byte       `json:"tag_byte" cbor:"tag_byte"`
	Header   int        `json:"header" cbor:"header"`
	Length   int        `json:"length" cbor:"length"`
	Value    string     `json:"value,omitempty" cbor:"value,omitempty"`
	Children []TreeNode `json:"children,omitempty" cbor:"children,omitempty"`
}

// Tree converts n and the nodes nested in it, following the same rules as
// Dump.
func Tree(n Node) TreeNode {
	t := TreeNode{
		Tag:     TagName(n.Tag()),
		TagByte: n.Tag(),
		Header:  n.FullLength() - n.Len(),
		Length:  n.Len(),
		Value:   describeValue(n),
	}
	for _, child := range nestedNodes(n) {
		t.Children = append(t.Children, Tree(child))
	}
	return t
}
