package headless

import (
	"github.com/jobrunner/mapkit/internal/domain"
	"github.com/jobrunner/mapkit/internal/ports/output"
)

// Click reports a tap on the map at p.
func (p *Provider) Click(at domain.GeoPoint) {
	if p.sink != nil {
		p.sink.OnMapClick(at)
	}
}

// LongClick reports a long press on the map at p.
func (p *Provider) LongClick(at domain.GeoPoint) {
	if p.sink != nil {
		p.sink.OnMapLongClick(at)
	}
}

// Tap reports a tap on a drawn primitive.
func (p *Provider) Tap(h output.Handle) {
	if p.sink != nil {
		p.sink.OnHandleClick(h)
	}
}

// Drag moves a draggable marker along path, reporting start, every step and end
// like a touch gesture would. It reports false if h is not a draggable marker.
func (p *Provider) Drag(h output.Handle, path ...domain.GeoPoint) bool {
	m := p.marker(h)
	if m == nil || !m.Draggable {
		return false
	}

	if p.sink != nil {
		p.sink.OnDragStart(h)
	}
	for _, pos := range path {
		m.Position = pos.Flat()
		if p.sink != nil {
			p.sink.OnDrag(h)
		}
	}
	if p.sink != nil {
		p.sink.OnDragEnd(h)
	}
	return true
}
