package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"boardsync/core"
)

// memStore keeps every project's object set in process memory. It is the
// default store and the one the test suites run against.
type memStore struct {
	mu       sync.RWMutex
	projects map[string]map[string]core.CanvasObject
	updated  map[string]time.Time
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		projects: make(map[string]map[string]core.CanvasObject),
		updated:  make(map[string]time.Time),
	}
}

func (s *memStore) FetchAll(ctx context.Context, projectID string) ([]core.CanvasObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects := make([]core.CanvasObject, 0, len(s.projects[projectID]))
	for _, obj := range s.projects[projectID] {
		objects = append(objects, obj)
	}
	return objects, nil
}

func (s *memStore) BatchUpdate(ctx context.Context, projectID string, updates map[string]*core.CanvasObject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	objects, ok := s.projects[projectID]
	if !ok {
		objects = make(map[string]core.CanvasObject)
		s.projects[projectID] = objects
	}
	for id, obj := range updates {
		if obj == nil {
			delete(objects, id)
			continue
		}
		objects[id] = *obj
	}
	s.updated[projectID] = time.Now()

	logrus.WithFields(logrus.Fields{
		"project_id": projectID,
		"updates":    len(updates),
	}).Debug("Applied batch update")
	return nil
}

func (s *memStore) ListProjects(ctx context.Context) ([]*core.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	projects := make([]*core.Project, 0, len(s.projects))
	for id, objects := range s.projects {
		projects = append(projects, &core.Project{
			ID:          id,
			ObjectCount: len(objects),
			UpdatedAt:   s.updated[id],
		})
	}
	return projects, nil
}

func (s *memStore) DeleteProject(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.projects, projectID)
	delete(s.updated, projectID)
	logrus.WithField("project_id", projectID).Info("Project deleted")
	return nil
}
