package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"boardsync/core"
)

// fsStore persists each project as a single JSON file holding its full
// object set. Batch updates are read-modify-write behind a process-wide
// mutex, with a rename for the final write so readers never observe a
// torn file.
type fsStore struct {
	basePath string
	mu       sync.Mutex
}

// NewStore creates a new filesystem-based store.
func NewStore(basePath string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath}
}

func (s *fsStore) projectPath(projectID string) (string, error) {
	path := filepath.Join(s.basePath, projectID+".json")
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	// The separator matters: a bare prefix check would admit a sibling
	// directory such as <basePath>-evil.
	if !strings.HasPrefix(absPath, absBase+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid project id: access denied")
	}
	return absPath, nil
}

func (s *fsStore) readObjects(projectID string) (map[string]core.CanvasObject, error) {
	path, err := s.projectPath(projectID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]core.CanvasObject), nil
		}
		return nil, err
	}
	var objects map[string]core.CanvasObject
	if err := json.Unmarshal(data, &objects); err != nil {
		return nil, err
	}
	if objects == nil {
		objects = make(map[string]core.CanvasObject)
	}
	return objects, nil
}

func (s *fsStore) writeObjects(projectID string, objects map[string]core.CanvasObject) error {
	path, err := s.projectPath(projectID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(objects)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *fsStore) FetchAll(ctx context.Context, projectID string) ([]core.CanvasObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, err := s.readObjects(projectID)
	if err != nil {
		return nil, err
	}
	objects := make([]core.CanvasObject, 0, len(byID))
	for _, obj := range byID {
		objects = append(objects, obj)
	}
	return objects, nil
}

func (s *fsStore) BatchUpdate(ctx context.Context, projectID string, updates map[string]*core.CanvasObject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	objects, err := s.readObjects(projectID)
	if err != nil {
		return err
	}
	for id, obj := range updates {
		if obj == nil {
			delete(objects, id)
			continue
		}
		objects[id] = *obj
	}
	if err := s.writeObjects(projectID, objects); err != nil {
		logrus.WithFields(logrus.Fields{
			"project_id": projectID,
			"error":      err,
		}).Error("Failed to write project file")
		return err
	}
	return nil
}

func (s *fsStore) ListProjects(ctx context.Context) ([]*core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, err
	}

	projects := make([]*core.Project, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		projectID := strings.TrimSuffix(name, ".json")
		info, err := entry.Info()
		if err != nil {
			logrus.WithError(err).Warnf("Failed to stat %s, skipping", name)
			continue
		}
		byID, err := s.readObjects(projectID)
		if err != nil {
			logrus.WithError(err).Warnf("Failed to read %s, skipping", name)
			continue
		}
		projects = append(projects, &core.Project{
			ID:          projectID,
			ObjectCount: len(byID),
			UpdatedAt:   info.ModTime(),
		})
	}
	return projects, nil
}

func (s *fsStore) DeleteProject(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.projectPath(projectID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	logrus.WithField("project_id", projectID).Info("Project deleted")
	return nil
}
