package monitor

// Display receives a View once per render tick. Update runs on the render
// loop goroutine and must return well within one tick; slow displays should
// hand the view off and render elsewhere.
type Display interface {
	Update(View)
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(View)

// Update calls f(v).
func (f DisplayFunc) Update(v View) { f(v) }

// MultiDisplay fans a view out to several displays in order.
type MultiDisplay []Display

// Update forwards v to every non-nil display.
func (m MultiDisplay) Update(v View) {
	for _, d := range m {
		if d != nil {
			d.Update(v)
		}
	}
}

// Displays combines the non-nil displays. It returns nil when there are none,
// which the monitor treats as collection-only mode.
func Displays(ds ...Display) Display {
	var out MultiDisplay
	for _, d := range ds {
		if d != nil {
			out = append(out, d)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return out
	}
}
