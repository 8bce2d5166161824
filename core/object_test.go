package core

import (
	"testing"
	"time"
)

func TestCanvasObjectEqual(t *testing.T) {
	now := time.Now()
	obj := CanvasObject{
		ID:        "r1",
		Type:      TypeRectangle,
		X:         10,
		Y:         20,
		Width:     100,
		Height:    50,
		Fill:      "#ff0000",
		Visible:   true,
		CreatedAt: now,
	}

	same := obj
	if !obj.Equal(same) {
		t.Error("Expected identical objects to be equal")
	}

	moved := obj
	moved.X = 11
	if obj.Equal(moved) {
		t.Error("Expected objects with different positions to differ")
	}
}

func TestCanvasObjectEqualFieldSensitivity(t *testing.T) {
	base := CanvasObject{
		ID:          "o1",
		Type:        TypeRectangle,
		X:           1,
		Y:           2,
		Width:       3,
		Height:      4,
		Radius:      5,
		Points:      []float64{0, 0, 1, 1},
		Fill:        "#fff",
		Stroke:      "#000",
		StrokeWidth: 2,
		Opacity:     0.5,
		Rotation:    45,
		Text:        "hi",
		FontSize:    12,
		FontFamily:  "mono",
		URL:         "http://img",
		CreatedBy:   "alice",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		ParentID:    "g1",
		IsCollapsed: true,
		Visible:     true,
		Locked:      true,
	}

	mutations := map[string]func(*CanvasObject){
		"ID":          func(o *CanvasObject) { o.ID = "other" },
		"Type":        func(o *CanvasObject) { o.Type = TypeCircle },
		"X":           func(o *CanvasObject) { o.X++ },
		"Y":           func(o *CanvasObject) { o.Y++ },
		"Width":       func(o *CanvasObject) { o.Width++ },
		"Height":      func(o *CanvasObject) { o.Height++ },
		"Radius":      func(o *CanvasObject) { o.Radius++ },
		"Points":      func(o *CanvasObject) { o.Points = []float64{0, 0, 1, 2} },
		"Fill":        func(o *CanvasObject) { o.Fill = "#eee" },
		"Stroke":      func(o *CanvasObject) { o.Stroke = "#111" },
		"StrokeWidth": func(o *CanvasObject) { o.StrokeWidth++ },
		"Opacity":     func(o *CanvasObject) { o.Opacity = 0.9 },
		"Rotation":    func(o *CanvasObject) { o.Rotation++ },
		"Text":        func(o *CanvasObject) { o.Text = "bye" },
		"FontSize":    func(o *CanvasObject) { o.FontSize++ },
		"FontFamily":  func(o *CanvasObject) { o.FontFamily = "serif" },
		"URL":         func(o *CanvasObject) { o.URL = "http://other" },
		"CreatedBy":   func(o *CanvasObject) { o.CreatedBy = "bob" },
		"CreatedAt":   func(o *CanvasObject) { o.CreatedAt = o.CreatedAt.Add(time.Second) },
		"UpdatedAt":   func(o *CanvasObject) { o.UpdatedAt = o.UpdatedAt.Add(time.Second) },
		"ParentID":    func(o *CanvasObject) { o.ParentID = "g2" },
		"IsCollapsed": func(o *CanvasObject) { o.IsCollapsed = false },
		"Visible":     func(o *CanvasObject) { o.Visible = false },
		"Locked":      func(o *CanvasObject) { o.Locked = false },
	}

	if !base.Equal(base) {
		t.Fatal("Expected an object to equal itself")
	}
	for field, mutate := range mutations {
		changed := base
		changed.Points = append([]float64(nil), base.Points...)
		mutate(&changed)
		if base.Equal(changed) {
			t.Errorf("Expected a change to %s to break equality", field)
		}
	}
}

func TestCanvasObjectEqualPoints(t *testing.T) {
	line := CanvasObject{ID: "l1", Type: TypeLine, Points: []float64{0, 0, 10, 10}, Visible: true}

	same := line
	same.Points = []float64{0, 0, 10, 10}
	if !line.Equal(same) {
		t.Error("Expected lines with equal points to be equal")
	}

	diff := line
	diff.Points = []float64{0, 0, 10, 11}
	if line.Equal(diff) {
		t.Error("Expected lines with different points to differ")
	}

	short := line
	short.Points = []float64{0, 0}
	if line.Equal(short) {
		t.Error("Expected lines with different point counts to differ")
	}
}

func TestCanvasObjectEqualTimestampRoundTrip(t *testing.T) {
	// A snapshot that round-tripped through JSON loses the monotonic
	// clock reading; equality must still hold.
	now := time.Now()
	a := CanvasObject{ID: "t1", Type: TypeText, Visible: true, CreatedAt: now}
	b := a
	b.CreatedAt = now.Round(0)

	if !a.Equal(b) {
		t.Error("Expected objects with equal instants to be equal")
	}
}

func TestObjectsEqual(t *testing.T) {
	a := CanvasObject{ID: "a", Type: TypeRectangle, Visible: true}
	b := CanvasObject{ID: "b", Type: TypeCircle, Radius: 5, Visible: true}

	if !ObjectsEqual([]CanvasObject{a, b}, []CanvasObject{b, a}) {
		t.Error("Expected order-independent equality")
	}
	if ObjectsEqual([]CanvasObject{a, b}, []CanvasObject{a}) {
		t.Error("Expected different lengths to differ")
	}

	changed := b
	changed.Radius = 6
	if ObjectsEqual([]CanvasObject{a, b}, []CanvasObject{a, changed}) {
		t.Error("Expected changed field to break set equality")
	}
}

func TestWouldCreateCycle(t *testing.T) {
	objects := []CanvasObject{
		{ID: "g1", Type: TypeGroup, Visible: true},
		{ID: "g2", Type: TypeGroup, ParentID: "g1", Visible: true},
		{ID: "r1", Type: TypeRectangle, ParentID: "g2", Visible: true},
	}

	if WouldCreateCycle(objects, "r1", "g1") {
		t.Error("Reparenting a leaf under an ancestor group is not a cycle")
	}
	if !WouldCreateCycle(objects, "g1", "g2") {
		t.Error("Expected cycle when moving g1 under its descendant g2")
	}
	if !WouldCreateCycle(objects, "g1", "g1") {
		t.Error("Expected self-parenting to be a cycle")
	}
	if WouldCreateCycle(objects, "g1", "") {
		t.Error("Promoting to root can never be a cycle")
	}
}

func TestWouldCreateCycleMalformedInput(t *testing.T) {
	// A loop already present in the input must not hang the walk.
	objects := []CanvasObject{
		{ID: "g1", Type: TypeGroup, ParentID: "g2", Visible: true},
		{ID: "g2", Type: TypeGroup, ParentID: "g1", Visible: true},
	}

	done := make(chan bool, 1)
	go func() {
		WouldCreateCycle(objects, "x", "g1")
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WouldCreateCycle did not terminate on cyclic input")
	}
}
