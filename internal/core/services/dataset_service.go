package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mltrack/backend/internal/core/ports"
	"github.com/mltrack/backend/internal/domain"
	"github.com/mltrack/backend/internal/infrastructure/logger"
)

const defaultMaxUploadBytes = 256 << 20

type datasetService struct {
	repo        ports.DatasetRepository
	logger      *logger.Logger
	dir         string
	maxBytes    int64
	mu          sync.Mutex
	locks       map[string]*sync.Mutex
	enableLocks bool
}

type DatasetServiceConfig struct {
	Repository ports.DatasetRepository
	Logger     *logger.Logger
	// Dir is where uploaded files land; created on first upload.
	Dir         string
	MaxBytes    int64
	EnableLocks bool
}

func NewDatasetService(cfg DatasetServiceConfig) ports.DatasetService {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &datasetService{
		repo:        cfg.Repository,
		logger:      log,
		dir:         cfg.Dir,
		maxBytes:    cfg.MaxBytes,
		locks:       make(map[string]*sync.Mutex),
		enableLocks: cfg.EnableLocks,
	}
}

func (s *datasetService) lockKeys(keys ...string) func() {
	if !s.enableLocks {
		return func() {}
	}
	if len(keys) == 0 {
		return func() {}
	}
	sort.Strings(keys)
	s.mu.Lock()
	acquired := make([]*sync.Mutex, 0, len(keys))
	for _, k := range keys {
		m := s.locks[k]
		if m == nil {
			m = &sync.Mutex{}
			s.locks[k] = m
		}
		acquired = append(acquired, m)
	}
	s.mu.Unlock()
	for _, m := range acquired {
		m.Lock()
	}
	return func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].Unlock()
		}
	}
}

func (s *datasetService) UploadDataset(ctx context.Context, input ports.UploadDatasetInput) (*domain.Dataset, error) {
	format, err := s.validateInput(&input)
	if err != nil {
		return nil, err
	}

	unlock := s.lockKeys(fmt.Sprintf("dataset:%s", input.Name))
	defer unlock()

	existing, _ := s.repo.GetByName(ctx, input.Name)
	if existing != nil {
		s.logger.Warnw("dataset with name already exists", "name", input.Name)
		return nil, ErrDatasetExists
	}

	deletedDataset, _ := s.repo.GetByNameWithDeleted(ctx, input.Name)

	path, size, checksum, err := s.writeFile(format, input.Content)
	if err != nil {
		return nil, err
	}

	if deletedDataset != nil {
		s.logger.Infow("restoring soft-deleted dataset", "name", input.Name, "old_id", deletedDataset.ID)

		oldPath := deletedDataset.Path
		deletedDataset.Format = format
		deletedDataset.Description = input.Description
		deletedDataset.Path = path
		deletedDataset.SizeBytes = size
		deletedDataset.Checksum = checksum

		if err := s.repo.Restore(ctx, deletedDataset); err != nil {
			s.logger.Errorw("failed to restore dataset", "error", err)
			s.removeFile(path)
			return nil, err
		}
		if oldPath != "" && oldPath != path {
			s.removeFile(oldPath)
		}

		s.logger.Infow("dataset restored", "id", deletedDataset.ID, "name", deletedDataset.Name)
		return deletedDataset, nil
	}

	dataset := &domain.Dataset{
		Name:        input.Name,
		Format:      format,
		Description: input.Description,
		Path:        path,
		SizeBytes:   size,
		Checksum:    checksum,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := s.repo.Create(ctx, dataset); err != nil {
		s.logger.Errorw("failed to create dataset", "error", err)
		s.removeFile(path)
		return nil, err
	}

	s.logger.Infow("dataset created", "id", dataset.ID, "name", dataset.Name, "size_bytes", size)
	return dataset, nil
}

func (s *datasetService) GetDatasets(ctx context.Context) ([]domain.Dataset, error) {
	return s.repo.GetAll(ctx)
}

func (s *datasetService) GetDatasetByID(ctx context.Context, id uint) (*domain.Dataset, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *datasetService) UpdateDataset(ctx context.Context, id uint, input ports.UpdateDatasetInput) (*domain.Dataset, error) {
	unlock := s.lockKeys(fmt.Sprintf("dataset:%d", id))
	defer unlock()

	dataset, _ := s.repo.GetByID(ctx, id)
	if dataset == nil {
		return nil, ErrDatasetNotFound
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
		if name != dataset.Name {
			// The unique index covers soft-deleted rows too.
			existing, _ := s.repo.GetByNameWithDeleted(ctx, name)
			if existing != nil && existing.ID != dataset.ID {
				return nil, ErrDatasetExists
			}
			dataset.Name = name
		}
	}
	if input.Description != nil {
		dataset.Description = *input.Description
	}

	if err := s.repo.Update(ctx, dataset); err != nil {
		s.logger.Errorw("failed to update dataset", "id", id, "error", err)
		return nil, err
	}
	return dataset, nil
}

func (s *datasetService) DeleteDataset(ctx context.Context, id uint) error {
	unlock := s.lockKeys(fmt.Sprintf("dataset:%d", id))
	defer unlock()

	dataset, _ := s.repo.GetByID(ctx, id)
	if dataset == nil {
		return ErrDatasetNotFound
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	// The row is only soft-deleted, but a restore always brings fresh
	// content, so the file can go now.
	s.removeFile(dataset.Path)
	s.logger.Infow("dataset deleted", "id", id, "name", dataset.Name)
	return nil
}

func (s *datasetService) OpenDataset(ctx context.Context, id uint) (*domain.Dataset, io.ReadCloser, error) {
	dataset, _ := s.repo.GetByID(ctx, id)
	if dataset == nil {
		return nil, nil, ErrDatasetNotFound
	}

	f, err := os.Open(dataset.Path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Errorw("dataset file missing", "id", id, "path", dataset.Path)
			return nil, nil, ErrDatasetNotFound
		}
		return nil, nil, err
	}
	return dataset, f, nil
}

func (s *datasetService) validateInput(input *ports.UploadDatasetInput) (domain.DatasetFormat, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validateName(input.Name); err != nil {
		return "", err
	}
	if input.Content == nil {
		return "", ErrDatasetInvalidInput
	}
	if input.Size > s.uploadLimit() {
		return "", ErrDatasetTooLarge
	}

	format := domain.DatasetFormat(strings.ToLower(strings.TrimSpace(input.Format)))
	if format == "" {
		format = formatFromName(input.Name)
	}
	switch format {
	case domain.DatasetFormatCSV, domain.DatasetFormatARFF, domain.DatasetFormatJSON:
	default:
		return "", ErrDatasetInvalidInput
	}
	return format, nil
}

func validateName(name string) error {
	if name == "" || len(name) > 255 {
		return ErrDatasetInvalidInput
	}
	if strings.ContainsAny(name, "/\\") {
		return ErrDatasetInvalidInput
	}
	return nil
}

func formatFromName(name string) domain.DatasetFormat {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return domain.DatasetFormatCSV
	}
	return domain.DatasetFormat(ext)
}

// writeFile stores the upload under a random name and returns the path,
// the byte count and the sha256 of what was written.
func (s *datasetService) writeFile(format domain.DatasetFormat, content io.Reader) (string, int64, string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.Errorw("failed to create dataset dir", "dir", s.dir, "error", err)
		return "", 0, "", err
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%s.%s", uuid.New().String(), format))
	f, err := os.Create(path)
	if err != nil {
		s.logger.Errorw("failed to create dataset file", "path", path, "error", err)
		return "", 0, "", err
	}

	limit := s.uploadLimit()
	hasher := sha256.New()
	size, err := io.Copy(f, io.TeeReader(io.LimitReader(content, limit+1), hasher))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.removeFile(path)
		return "", 0, "", err
	}
	if size > limit {
		s.removeFile(path)
		return "", 0, "", ErrDatasetTooLarge
	}

	return path, size, hex.EncodeToString(hasher.Sum(nil)), nil
}

func (s *datasetService) uploadLimit() int64 {
	if s.maxBytes > 0 {
		return s.maxBytes
	}
	return defaultMaxUploadBytes
}

func (s *datasetService) removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warnw("failed to remove dataset file", "path", path, "error", err)
	}
}
