package collab

import "boardsync/core"

// Only group objects may parent other objects. Older clients wrote
// parentId references to arbitrary objects; NeedsMigration and Flatten
// repair such sets lazily on first load.

// NeedsMigration reports whether any object's parentId points at a
// missing object or at an object that is not a group.
func NeedsMigration(objects []core.CanvasObject) bool {
	types := make(map[string]core.ObjectType, len(objects))
	for _, o := range objects {
		types[o.ID] = o.Type
	}
	for _, o := range objects {
		if o.ParentID == "" {
			continue
		}
		if t, ok := types[o.ParentID]; !ok || t != core.TypeGroup {
			return true
		}
	}
	return false
}

// Flatten promotes every object whose parent is missing or not a group
// to the root, leaving all other fields untouched. It returns the
// corrected set and the IDs that were rewritten. The pass is a single
// sweep over an ID index — no tree walk — so a malformed parent loop in
// the input cannot hang it, and running it twice changes nothing.
func Flatten(objects []core.CanvasObject) ([]core.CanvasObject, []string) {
	types := make(map[string]core.ObjectType, len(objects))
	for _, o := range objects {
		types[o.ID] = o.Type
	}

	out := make([]core.CanvasObject, len(objects))
	var flattened []string
	for i, o := range objects {
		out[i] = o
		if o.ParentID == "" {
			continue
		}
		if t, ok := types[o.ParentID]; !ok || t != core.TypeGroup {
			out[i].ParentID = ""
			flattened = append(flattened, o.ID)
		}
	}
	return out, flattened
}
