package service

import (
	"context"
	"strings"
	"time"

	"opsboard/internal/core"
)

type DatasetService struct {
	repo core.DatasetRepository
	now  func() time.Time
}

func NewDatasetService(repo core.DatasetRepository) *DatasetService {
	return &DatasetService{repo: repo, now: time.Now}
}

func (s *DatasetService) List(ctx context.Context) ([]core.Dataset, error) {
	datasets, err := s.repo.List(ctx)
	if err != nil {
		return nil, storeFailed(err)
	}
	return datasets, nil
}

func (s *DatasetService) Get(ctx context.Context, id int64) (*core.Dataset, error) {
	ds, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeFailed(err)
	}
	if ds == nil {
		return nil, notFound("dataset", id)
	}
	return ds, nil
}

func (s *DatasetService) ListByUploader(ctx context.Context, uploadedBy string) ([]core.Dataset, error) {
	if uploadedBy == "" {
		return nil, core.InvalidInput("Uploader is required")
	}
	datasets, err := s.repo.ListByUploader(ctx, uploadedBy)
	if err != nil {
		return nil, storeFailed(err)
	}
	return datasets, nil
}

// Create records dataset metadata dated today and returns its id.
func (s *DatasetService) Create(ctx context.Context, name string, rows, columns int64, uploadedBy string) (int64, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return 0, core.InvalidInput("Dataset name is required")
	case uploadedBy == "":
		return 0, core.InvalidInput("Uploader is required")
	case rows < 0:
		return 0, core.InvalidInput("Row count cannot be negative")
	case columns < 0:
		return 0, core.InvalidInput("Column count cannot be negative")
	}

	now := s.now()
	ds := &core.Dataset{
		Name:        name,
		RowCount:    rows,
		ColumnCount: columns,
		UploadedBy:  uploadedBy,
		UploadDate:  time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
	}
	if err := s.repo.Create(ctx, ds); err != nil {
		return 0, storeFailed(err)
	}
	return ds.ID, nil
}

func (s *DatasetService) Delete(ctx context.Context, id int64) (bool, error) {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, storeFailed(err)
	}
	return ok, nil
}

// TotalRecords sums row counts across all datasets.
func (s *DatasetService) TotalRecords(ctx context.Context) (int64, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return 0, storeFailed(err)
	}
	return stats.TotalRows, nil
}

func (s *DatasetService) Statistics(ctx context.Context) (core.DatasetStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return core.DatasetStats{}, storeFailed(err)
	}
	stats.AvgColumns = round2(stats.AvgColumns)
	return stats, nil
}
