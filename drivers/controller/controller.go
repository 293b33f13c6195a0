package controller

// Controller tracks two consecutive snapshots of the selected source to
// detect button edges.
type Controller struct {
	current, last State
}

func (c *Controller) Update(s State) {
	c.last = c.current
	c.current = s
}

func (c *Controller) State() State {
	return c.current
}

func (c *Controller) Down() ButtonMask {
	return c.current.Buttons
}

func (c *Controller) Changed() ButtonMask {
	return c.current.Buttons ^ c.last.Buttons
}

func (c *Controller) Pressed() ButtonMask {
	return c.Changed() & c.current.Buttons
}

func (c *Controller) Released() ButtonMask {
	return c.Changed() & c.last.Buttons
}

// Combo returns true if all buttons in mask are held and at least one of
// them was pressed in the last update.
func (c *Controller) Combo(mask ButtonMask) bool {
	return c.current.Buttons&mask == mask && c.Pressed()&mask != 0
}
