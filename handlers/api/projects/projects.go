package projects

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"boardsync/core"
	"boardsync/handlers/auth"
	"boardsync/handlers/realtime"
	"boardsync/middleware"
	"boardsync/stores"
)

// HandleListProjects returns metadata for every known project.
func HandleListProjects(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(middleware.ClaimsContextKey).(*auth.AppClaims)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		projects, err := store.ListProjects(r.Context())
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
			}).Error("Failed to list projects")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list projects"})
			return
		}

		if projects == nil {
			projects = []*core.Project{}
		}
		render.JSON(w, r, projects)
	}
}

// HandleGetObjects returns the full object set of a project: the direct
// read the sync core uses as its forced initial fetch.
func HandleGetObjects(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "project_id")
		if projectID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Project id is required"})
			return
		}

		objects, err := store.FetchAll(r.Context(), projectID)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":      err,
				"project_id": projectID,
			}).Error("Failed to fetch objects")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to fetch objects"})
			return
		}

		if objects == nil {
			objects = []core.CanvasObject{}
		}
		render.JSON(w, r, objects)
	}
}

// HandleBatchUpdate applies upserts and deletes in one commit. Bodies
// are keyed by object ID; a JSON null deletes that object.
func HandleBatchUpdate(store stores.Store, hub *realtime.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(middleware.ClaimsContextKey).(*auth.AppClaims)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		projectID := chi.URLParam(r, "project_id")
		if projectID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Project id is required"})
			return
		}

		var updates map[string]*core.CanvasObject
		if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		defer r.Body.Close()

		if err := store.BatchUpdate(r.Context(), projectID, updates); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":      err,
				"userID":     claims.Subject,
				"project_id": projectID,
			}).Error("Failed to apply batch update")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to apply batch update"})
			return
		}

		// HTTP writers bypass the websocket path, so push the new
		// snapshot to the room here.
		hub.NotifyUpdated(projectID)

		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]int{"applied": len(updates)})
	}
}

// HandleDeleteProject removes a project and all of its objects.
func HandleDeleteProject(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(middleware.ClaimsContextKey).(*auth.AppClaims)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		projectID := chi.URLParam(r, "project_id")
		if projectID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Project id is required"})
			return
		}

		if err := store.DeleteProject(r.Context(), projectID); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":      err,
				"userID":     claims.Subject,
				"project_id": projectID,
			}).Error("Failed to delete project")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to delete project"})
			return
		}

		render.Status(r, http.StatusOK)
	}
}

// HandleActiveProjects reports live room sizes across both realtime
// endpoints.
func HandleActiveProjects(hub *realtime.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]any{
			"ws":      hub.ActiveProjects(),
			"browser": realtime.GetActiveBrowserRooms(),
		})
	}
}
