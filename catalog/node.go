package catalog

import (
	"github.com/pkg/errors"
)

// Kind discriminates category and leaf nodes
type Kind int

const (
	// KindLeaf a runnable example
	KindLeaf Kind = iota
	// KindCategory a grouping folder, may have zero children
	KindCategory
)

func (k Kind) String() string {
	switch k {
	case KindCategory:
		return "category"
	case KindLeaf:
		return "leaf"
	default:
		return "unknown"
	}
}

// Node node in a catalog tree
type Node struct {
	Kind        Kind
	Path        string     // normalized identifier, unique among siblings when created
	Name        string     // display label
	CreatedAtMs int64      // set on creation, refreshed when a leaf is upserted
	Children    []*Node    // category only - insertion order is display order
	SceneInfo   *SceneInfo // leaf only - derived from content, never edited by hand
	UserAdded   bool       // leaf only - true for leaves created through AddEntry
}

// wireNode the serialized shape: a present children array marks a category
type wireNode struct {
	Path        string     `json:"path"`
	Name        string     `json:"name"`
	Children    *[]*Node   `json:"children,omitempty"`
	CreatedAtMs int64      `json:"createdAtMs"`
	BirthtimeMs *float64   `json:"birthtimeMs,omitempty"`
	SceneInfo   *SceneInfo `json:"sceneInfo,omitempty"`
	UserAdded   bool       `json:"userAdded,omitempty"`
}

// NewCategory constructor
func NewCategory(path, name string, createdAtMs int64) *Node {
	return &Node{
		Kind:        KindCategory,
		Path:        path,
		Name:        name,
		CreatedAtMs: createdAtMs,
		Children:    []*Node{},
	}
}

// NewLeaf constructor
func NewLeaf(path, name string, createdAtMs int64, sceneInfo *SceneInfo, userAdded bool) *Node {
	return &Node{
		Kind:        KindLeaf,
		Path:        path,
		Name:        name,
		CreatedAtMs: createdAtMs,
		SceneInfo:   sceneInfo,
		UserAdded:   userAdded,
	}
}

func (n *Node) IsCategory() bool {
	return n.Kind == KindCategory
}

func (n *Node) IsLeaf() bool {
	return n.Kind == KindLeaf
}

// Clone returns a deep copy
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		Kind:        n.Kind,
		Path:        n.Path,
		Name:        n.Name,
		CreatedAtMs: n.CreatedAtMs,
		UserAdded:   n.UserAdded,
	}
	if n.SceneInfo != nil {
		info := *n.SceneInfo
		c.SceneInfo = &info
	}
	if n.IsCategory() {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return c
}

// MarshalJSON writes children only for categories, an empty category gets "[]"
func (n *Node) MarshalJSON() ([]byte, error) {
	w := wireNode{
		Path:        n.Path,
		Name:        n.Name,
		CreatedAtMs: n.CreatedAtMs,
	}
	if n.IsCategory() {
		children := n.Children
		if children == nil {
			children = []*Node{}
		}
		w.Children = &children
	} else {
		w.SceneInfo = n.SceneInfo
		w.UserAdded = n.UserAdded
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads both the current and the legacy (birthtimeMs) shape
func (n *Node) UnmarshalJSON(data []byte) error {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*n = Node{
		Path:        w.Path,
		Name:        w.Name,
		CreatedAtMs: w.CreatedAtMs,
	}
	if n.CreatedAtMs == 0 && w.BirthtimeMs != nil {
		n.CreatedAtMs = int64(*w.BirthtimeMs)
	}
	if w.Children == nil {
		n.Kind = KindLeaf
		n.SceneInfo = w.SceneInfo
		n.UserAdded = w.UserAdded
		return nil
	}
	n.Kind = KindCategory
	n.Children = make([]*Node, 0, len(*w.Children))
	for i, child := range *w.Children {
		if child == nil {
			return errors.Errorf("category %q: child %d is null", w.Path, i)
		}
		n.Children = append(n.Children, child)
	}
	return nil
}

// ParseTree decodes a serialized tree, the root has to be a category
func ParseTree(data []byte) (*Node, error) {
	var root *Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, errors.Wrap(err, "failed to decode tree")
	}
	if root == nil {
		return nil, errors.New("tree must not be null")
	}
	if !root.IsCategory() {
		return nil, errors.New("tree root must be a category")
	}
	return root, nil
}

// Encode serializes a tree, indent is used for exports meant for humans
func Encode(root *Node, indent bool) ([]byte, error) {
	if root == nil {
		return nil, errors.New("tree must not be nil")
	}
	if indent {
		return json.MarshalIndent(root, "", Indent)
	}
	return json.Marshal(root)
}
