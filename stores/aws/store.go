package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"boardsync/core"
)

const projectPrefix = "projects/"

// s3Store keeps one JSON object per project under projects/<id>.json.
// S3 has no multi-key transaction, so batch atomicity comes from the
// single-object layout plus a process-wide mutex; the relay is the only
// writer in a deployment.
type s3Store struct {
	s3Client *s3.Client
	bucket   string
	mu       sync.Mutex
}

// NewStore creates a new S3-based store.
func NewStore(bucketName string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	return &s3Store{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucketName,
	}
}

func projectKey(projectID string) string {
	return path.Join(projectPrefix, projectID) + ".json"
}

func (s *s3Store) readObjects(ctx context.Context, projectID string) (map[string]core.CanvasObject, error) {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(projectKey(projectID)),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return make(map[string]core.CanvasObject), nil
		}
		return nil, fmt.Errorf("failed to get project %s: %w", projectID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read project data: %w", err)
	}
	objects := make(map[string]core.CanvasObject)
	if err := json.Unmarshal(data, &objects); err != nil {
		return nil, err
	}
	return objects, nil
}

func (s *s3Store) writeObjects(ctx context.Context, projectID string, objects map[string]core.CanvasObject) error {
	data, err := json.Marshal(objects)
	if err != nil {
		return err
	}
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(projectKey(projectID)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to upload project: %w", err)
	}
	return nil
}

func (s *s3Store) FetchAll(ctx context.Context, projectID string) ([]core.CanvasObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, err := s.readObjects(ctx, projectID)
	if err != nil {
		return nil, err
	}
	objects := make([]core.CanvasObject, 0, len(byID))
	for _, obj := range byID {
		objects = append(objects, obj)
	}
	return objects, nil
}

func (s *s3Store) BatchUpdate(ctx context.Context, projectID string, updates map[string]*core.CanvasObject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	objects, err := s.readObjects(ctx, projectID)
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
	return s.writeObjects(ctx, projectID, objects)
}

func (s *s3Store) ListProjects(ctx context.Context) ([]*core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var projects []*core.Project
	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(projectPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Contents {
			key := aws.ToString(item.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			project := &core.Project{
				ID: strings.TrimSuffix(strings.TrimPrefix(key, projectPrefix), ".json"),
			}
			if item.LastModified != nil {
				project.UpdatedAt = *item.LastModified
			}
			projects = append(projects, project)
		}
	}
	return projects, nil
}

func (s *s3Store) DeleteProject(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(projectKey(projectID)),
	})
	return err
}
