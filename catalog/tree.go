package catalog

import (
	"path"
	"strings"

	"golang.org/x/text/cases"
)

// Stats counts the nodes of a tree
type Stats struct {
	Categories int `json:"categories"`
	Leaves     int `json:"leaves"`
	UserAdded  int `json:"userAdded"`
}

// SplitPath splits on slashes and backslashes and drops empty segments
func SplitPath(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool {
		return r == '/' || r == '\\'
	})
}

// DisplayName picks the label for a new leaf: the explicit name, the title
// found in the content, the scene class and finally the bare file name.
func DisplayName(fileName string, sceneInfo *SceneInfo, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if sceneInfo != nil {
		if sceneInfo.SceneName != nil && *sceneInfo.SceneName != "" {
			return *sceneInfo.SceneName
		}
		if sceneInfo.ClassName != nil && *sceneInfo.ClassName != "" {
			return *sceneInfo.ClassName
		}
	}
	return strings.TrimSuffix(fileName, path.Ext(fileName))
}

// Walk visits every node depth first, children in order
func (n *Node) Walk(fn func(node *Node, depth int)) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(node *Node, depth int), depth int) {
	fn(n, depth)
	if !n.IsCategory() {
		return
	}
	for _, child := range n.Children {
		child.walk(fn, depth+1)
	}
}

// ChildCategory finds a direct child category by name
func (n *Node) ChildCategory(name string) *Node {
	for _, child := range n.Children {
		if child.IsCategory() && child.Name == name {
			return child
		}
	}
	return nil
}

// EnsureCategories walks the chain of category names from n and creates
// every missing category. Paths of new categories accumulate the names with
// PathSeparator, independent of the separator used by the caller.
func (n *Node) EnsureCategories(names []string, now int64) *Node {
	current := n
	categoryPath := ""
	for _, name := range names {
		if categoryPath != "" {
			categoryPath += PathSeparator
		}
		categoryPath += name
		next := current.ChildCategory(name)
		if next == nil {
			next = NewCategory(categoryPath, name, now)
			current.Children = append(current.Children, next)
		}
		current = next
	}
	return current
}

// UpsertLeaf updates a leaf of this category matching name or path in place,
// or appends a new user added leaf.
func (n *Node) UpsertLeaf(leafPath, name string, sceneInfo *SceneInfo, now int64) (leaf *Node, created bool) {
	for _, child := range n.Children {
		if child.IsLeaf() && (child.Name == name || child.Path == leafPath) {
			child.CreatedAtMs = now
			child.SceneInfo = sceneInfo
			return child, false
		}
	}
	leaf = NewLeaf(leafPath, name, now, sceneInfo, true)
	n.Children = append(n.Children, leaf)
	return leaf, true
}

// RemoveLeaf splices the first leaf with the given path out of its parent,
// searching depth first. Categories are never removed.
func (n *Node) RemoveLeaf(leafPath string) bool {
	if !n.IsCategory() {
		return false
	}
	for i, child := range n.Children {
		if child.IsLeaf() && child.Path == leafPath {
			n.Children = append(n.Children[:i:i], n.Children[i+1:]...)
			return true
		}
	}
	for _, child := range n.Children {
		if child.IsCategory() && child.RemoveLeaf(leafPath) {
			return true
		}
	}
	return false
}

// FilterLeaves collects all leaves accepted by fn in traversal order
func (n *Node) FilterLeaves(fn func(leaf *Node) bool) []*Node {
	leaves := []*Node{}
	n.Walk(func(node *Node, depth int) {
		if node.IsLeaf() && fn(node) {
			leaves = append(leaves, node)
		}
	})
	return leaves
}

// Search case insensitive substring match on name, path and scene name
func (n *Node) Search(query string) []*Node {
	fold := cases.Fold()
	q := fold.String(query)
	return n.FilterLeaves(func(leaf *Node) bool {
		if strings.Contains(fold.String(leaf.Name), q) || strings.Contains(fold.String(leaf.Path), q) {
			return true
		}
		return leaf.SceneInfo != nil && leaf.SceneInfo.SceneName != nil &&
			strings.Contains(fold.String(*leaf.SceneInfo.SceneName), q)
	})
}

// UserAddedLeaves all leaves created through AddEntry
func (n *Node) UserAddedLeaves() []*Node {
	return n.FilterLeaves(func(leaf *Node) bool {
		return leaf.UserAdded
	})
}

// Stats counts categories (without the root), leaves and user added leaves
func (n *Node) Stats() Stats {
	var s Stats
	n.Walk(func(node *Node, depth int) {
		switch {
		case depth == 0:
		case node.IsCategory():
			s.Categories++
		default:
			s.Leaves++
			if node.UserAdded {
				s.UserAdded++
			}
		}
	})
	return s
}
