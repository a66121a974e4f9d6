package canvas

// Edit is the closed set of mutations a room accepts. Keeping it a tagged
// union rather than a free-form updater lets the room loop handle every
// variant exhaustively and log/replay edits if needed.
type Edit interface{ isEdit() }

// AddRoot appends a component to the root list.
type AddRoot struct {
	Component *Component
}

// AddChild appends a child under the parent with ParentID. If the parent is
// gone the edit is dropped.
type AddChild struct {
	ParentID string
	Child    *Component
}

// RemoveComponent deletes a component (and its subtree) by id.
type RemoveComponent struct {
	ComponentID string
}

// Move sets the left/top style of a component.
type Move struct {
	ComponentID string
	NewPosition Position
}

// Resize sets the width/height style of a component.
type Resize struct {
	ComponentID string
	NewSize     Size
}

// StyleMerge merges key/value pairs into a component's style map.
type StyleMerge struct {
	ComponentID string
	Updates     map[string]string
}

// PropertyUpdate writes each key into content (for the "content" key) or the
// style map (everything else).
type PropertyUpdate struct {
	ComponentID string
	Updates     map[string]string
}

func (AddRoot) isEdit()         {}
func (AddChild) isEdit()        {}
func (RemoveComponent) isEdit() {}
func (Move) isEdit()            {}
func (Resize) isEdit()          {}
func (StyleMerge) isEdit()      {}
func (PropertyUpdate) isEdit()  {}

// Apply mutates the tree in place and reports whether the edit matched
// anything. A false return means the tree is unchanged: edits referencing a
// missing component are silently dropped, because another client may have
// deleted the target already. Callers needing atomicity clone first.
func Apply(t *Tree, e Edit) bool {
	switch e := e.(type) {
	case AddRoot:
		*t = append(*t, e.Component)
		return true

	case AddChild:
		parent := t.Find(e.ParentID)
		if parent == nil {
			return false
		}
		parent.Children = append(parent.Children, e.Child)
		return true

	case RemoveComponent:
		return t.Remove(e.ComponentID)

	case Move:
		return mutate(*t, e.ComponentID, func(c *Component) {
			ensureStyle(c)
			c.Style["left"] = e.NewPosition.Left
			c.Style["top"] = e.NewPosition.Top
		})

	case Resize:
		return mutate(*t, e.ComponentID, func(c *Component) {
			ensureStyle(c)
			c.Style["width"] = e.NewSize.Width
			c.Style["height"] = e.NewSize.Height
		})

	case StyleMerge:
		return mutate(*t, e.ComponentID, func(c *Component) {
			ensureStyle(c)
			for k, v := range e.Updates {
				c.Style[k] = v
			}
		})

	case PropertyUpdate:
		return mutate(*t, e.ComponentID, func(c *Component) {
			ensureStyle(c)
			for k, v := range e.Updates {
				if k == "content" {
					c.Content = v
				} else {
					c.Style[k] = v
				}
			}
		})
	}
	return false
}

func mutate(t Tree, id string, fn func(*Component)) bool {
	c := t.Find(id)
	if c == nil {
		return false
	}
	fn(c)
	return true
}

func ensureStyle(c *Component) {
	if c.Style == nil {
		c.Style = make(map[string]string)
	}
}
