package canvas

// DefaultType is used when a component carries no explicit tag.
const DefaultType = "div"

// Component is one node of a room's canvas. Children render in slice order.
type Component struct {
	ID       string            `json:"id"`
	Type     string            `json:"type,omitempty"`
	Style    map[string]string `json:"style,omitempty"`
	Content  string            `json:"content,omitempty"`
	Children []*Component      `json:"children,omitempty"`
}

// Position holds the CSS offsets applied by a move.
type Position struct {
	Left string `json:"left"`
	Top  string `json:"top"`
}

// Size holds the CSS dimensions applied by a resize.
type Size struct {
	Width  string `json:"width"`
	Height string `json:"height"`
}

// Tree is the ordered list of a room's root components.
type Tree []*Component

// Find returns the first component with the given id, searching depth-first:
// root order first, then each node's children in order. Returns nil if the id
// is not present anywhere in the tree.
func (t Tree) Find(id string) *Component {
	for _, c := range t {
		if c.ID == id {
			return c
		}
		if found := Tree(c.Children).Find(id); found != nil {
			return found
		}
	}
	return nil
}

// Remove deletes the first component matching id, wherever it sits in the
// tree, and reports whether a removal happened. Ids are unique per room, so
// at most one node is ever removed.
func (t *Tree) Remove(id string) bool {
	for i, c := range *t {
		if c.ID == id {
			*t = append((*t)[:i], (*t)[i+1:]...)
			return true
		}
	}
	for _, c := range *t {
		children := Tree(c.Children)
		if children.Remove(id) {
			c.Children = children
			return true
		}
	}
	return false
}

// Clone returns a deep copy sharing no memory with the receiver.
func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for i, c := range t {
		out[i] = c.Clone()
	}
	return out
}

// Clone returns a deep copy of the component and its subtree.
func (c *Component) Clone() *Component {
	if c == nil {
		return nil
	}
	out := &Component{
		ID:      c.ID,
		Type:    c.Type,
		Content: c.Content,
	}
	if c.Style != nil {
		out.Style = make(map[string]string, len(c.Style))
		for k, v := range c.Style {
			out.Style[k] = v
		}
	}
	if c.Children != nil {
		out.Children = []*Component(Tree(c.Children).Clone())
	}
	return out
}
