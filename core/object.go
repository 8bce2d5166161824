package core

import "time"

type ObjectType string

const (
	TypeRectangle ObjectType = "rectangle"
	TypeCircle    ObjectType = "circle"
	TypeText      ObjectType = "text"
	TypeLine      ObjectType = "line"
	TypeImage     ObjectType = "image"
	TypeGroup     ObjectType = "group"
)

type (
	// CanvasObject is the synchronized unit: one shape, text block, image
	// or group on a project canvas. The X/Y semantics vary by type
	// (top-left for rectangles and images, center for circles and text,
	// min-corner for lines); the sync layer treats position as opaque.
	CanvasObject struct {
		ID   string     `json:"id"`
		Type ObjectType `json:"type"`

		X float64 `json:"x"`
		Y float64 `json:"y"`

		Width  float64   `json:"width,omitempty"`
		Height float64   `json:"height,omitempty"`
		Radius float64   `json:"radius,omitempty"`
		Points []float64 `json:"points,omitempty"` // line endpoints, x1 y1 x2 y2

		Fill        string  `json:"fill,omitempty"`
		Stroke      string  `json:"stroke,omitempty"`
		StrokeWidth float64 `json:"strokeWidth,omitempty"`
		Opacity     float64 `json:"opacity,omitempty"`
		Rotation    float64 `json:"rotation,omitempty"`

		Text       string  `json:"text,omitempty"`
		FontSize   float64 `json:"fontSize,omitempty"`
		FontFamily string  `json:"fontFamily,omitempty"`
		URL        string  `json:"url,omitempty"`

		CreatedBy string    `json:"createdBy,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`

		// ParentID is a back-reference to a group, never an ownership
		// pointer. Empty means root.
		ParentID    string `json:"parentId,omitempty"`
		IsCollapsed bool   `json:"isCollapsed,omitempty"`

		Visible bool `json:"visible"`
		Locked  bool `json:"locked,omitempty"`
	}
)

// Equal reports field-for-field equality. Timestamps compare by instant
// so a snapshot that round-tripped through JSON still matches.
func (o CanvasObject) Equal(other CanvasObject) bool {
	if len(o.Points) != len(other.Points) {
		return false
	}
	for i := range o.Points {
		if o.Points[i] != other.Points[i] {
			return false
		}
	}
	if !o.CreatedAt.Equal(other.CreatedAt) || !o.UpdatedAt.Equal(other.UpdatedAt) {
		return false
	}
	return o.ID == other.ID &&
		o.Type == other.Type &&
		o.X == other.X &&
		o.Y == other.Y &&
		o.Width == other.Width &&
		o.Height == other.Height &&
		o.Radius == other.Radius &&
		o.Fill == other.Fill &&
		o.Stroke == other.Stroke &&
		o.StrokeWidth == other.StrokeWidth &&
		o.Opacity == other.Opacity &&
		o.Rotation == other.Rotation &&
		o.Text == other.Text &&
		o.FontSize == other.FontSize &&
		o.FontFamily == other.FontFamily &&
		o.URL == other.URL &&
		o.CreatedBy == other.CreatedBy &&
		o.ParentID == other.ParentID &&
		o.IsCollapsed == other.IsCollapsed &&
		o.Visible == other.Visible &&
		o.Locked == other.Locked
}

// ObjectsEqual reports whether two object sets carry the same objects
// with the same field values. Order does not matter.
func ObjectsEqual(a, b []CanvasObject) bool {
	if len(a) != len(b) {
		return false
	}
	byID := make(map[string]CanvasObject, len(a))
	for _, o := range a {
		byID[o.ID] = o
	}
	for _, o := range b {
		existing, ok := byID[o.ID]
		if !ok || !existing.Equal(o) {
			return false
		}
	}
	return true
}

// WouldCreateCycle reports whether reparenting childID under parentID
// would close a parentId loop. The walk is bounded by the object count,
// so a loop already present in the input cannot hang it.
func WouldCreateCycle(objects []CanvasObject, childID, parentID string) bool {
	if parentID == "" {
		return false
	}
	if childID == parentID {
		return true
	}
	parents := make(map[string]string, len(objects))
	for _, o := range objects {
		parents[o.ID] = o.ParentID
	}
	current := parentID
	for steps := 0; current != "" && steps <= len(objects); steps++ {
		if current == childID {
			return true
		}
		current = parents[current]
	}
	return false
}
