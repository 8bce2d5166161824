package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"boardsync/core"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}

	objectsStmt := `
	CREATE TABLE IF NOT EXISTS objects (
		project_id TEXT NOT NULL,
		object_id  TEXT NOT NULL,
		data       BLOB NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (project_id, object_id)
	);`
	if _, err = db.Exec(objectsStmt); err != nil {
		log.Fatalf("failed to create objects table: %v", err)
	}

	return &sqliteStore{db}
}

func (s *sqliteStore) FetchAll(ctx context.Context, projectID string) ([]core.CanvasObject, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT data FROM objects WHERE project_id = ?", projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	objects := make([]core.CanvasObject, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var obj core.CanvasObject
		if err := json.Unmarshal(data, &obj); err != nil {
			logrus.WithFields(logrus.Fields{
				"project_id": projectID,
				"error":      err,
			}).Warn("Skipping undecodable object row")
			continue
		}
		objects = append(objects, obj)
	}
	return objects, rows.Err()
}

// BatchUpdate commits all upserts and deletes in one transaction, so a
// partially applied migration fix can never be observed.
func (s *sqliteStore) BatchUpdate(ctx context.Context, projectID string, updates map[string]*core.CanvasObject) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for id, obj := range updates {
		if obj == nil {
			if _, err := tx.ExecContext(ctx, "DELETE FROM objects WHERE project_id = ? AND object_id = ?", projectID, id); err != nil {
				return err
			}
			continue
		}
		data, err := json.Marshal(obj)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO objects (project_id, object_id, data, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (project_id, object_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
			projectID, id, data, now)
		if err != nil {
			return err
		}
	}

	logrus.WithFields(logrus.Fields{
		"project_id": projectID,
		"updates":    len(updates),
	}).Debug("Applied batch update")
	return tx.Commit()
}

func (s *sqliteStore) ListProjects(ctx context.Context) ([]*core.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT project_id, COUNT(*), MAX(updated_at) FROM objects GROUP BY project_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*core.Project
	for rows.Next() {
		var (
			project   core.Project
			updatedAt string
		)
		if err := rows.Scan(&project.ID, &project.ObjectCount, &updatedAt); err != nil {
			return nil, err
		}
		// updated_at is stored as RFC 3339 text; MAX over it is the
		// lexicographic and chronological maximum at once.
		if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			project.UpdatedAt = ts
		}
		projects = append(projects, &project)
	}
	return projects, rows.Err()
}

func (s *sqliteStore) DeleteProject(ctx context.Context, projectID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM objects WHERE project_id = ?", projectID)
	if err == nil {
		logrus.WithField("project_id", projectID).Info("Project deleted")
	}
	return err
}
