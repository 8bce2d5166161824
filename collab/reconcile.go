package collab

import "boardsync/core"

// Reconcile merges a remote snapshot into the locally rendered object
// set. For every object in the snapshot the remote value is taken
// verbatim unless the object is under local manipulation, in which case
// the local copy wins (falling back to remote if no local copy exists).
// Manipulated objects missing from the snapshot are retained: they are
// presumed optimistic creates whose write has not round-tripped yet.
// Manipulated IDs found in neither set are dropped — deleted objects are
// not resurrected.
//
// Reconcile is a pure function over its inputs; the isManipulated
// predicate is consulted once per object at invocation time.
func Reconcile(local, remote []core.CanvasObject, isManipulated func(string) bool) []core.CanvasObject {
	localByID := make(map[string]core.CanvasObject, len(local))
	for _, o := range local {
		localByID[o.ID] = o
	}

	merged := make([]core.CanvasObject, 0, len(remote))
	inRemote := make(map[string]struct{}, len(remote))
	for _, remoteObj := range remote {
		inRemote[remoteObj.ID] = struct{}{}
		if isManipulated(remoteObj.ID) {
			if localObj, ok := localByID[remoteObj.ID]; ok {
				merged = append(merged, localObj)
				continue
			}
		}
		merged = append(merged, remoteObj)
	}

	for _, localObj := range local {
		if _, ok := inRemote[localObj.ID]; ok {
			continue
		}
		if isManipulated(localObj.ID) {
			merged = append(merged, localObj)
		}
	}

	return merged
}
