package data

import (
	"context"
	"database/sql"
	"fmt"

	"opsboard/internal/core"
)

const datasetColumns = `dataset_id, name, row_count, column_count, uploaded_by, upload_date`

type DatasetRepo struct {
	store Querier
}

func NewDatasetRepo(store Querier) *DatasetRepo {
	return &DatasetRepo{store: store}
}

type datasetRow struct {
	id          int64
	name        string
	rowCount    int64
	columnCount int64
	uploadedBy  string
	uploadDate  string
}

func (r *datasetRow) dest() []any {
	return []any{&r.id, &r.name, &r.rowCount, &r.columnCount, &r.uploadedBy, &r.uploadDate}
}

func (r *datasetRow) dataset() (core.Dataset, error) {
	uploaded, err := core.ParseTime(r.uploadDate)
	if err != nil {
		return core.Dataset{}, fmt.Errorf("dataset %d upload date: %w", r.id, err)
	}
	return core.Dataset{
		ID:          r.id,
		Name:        r.name,
		RowCount:    r.rowCount,
		ColumnCount: r.columnCount,
		UploadedBy:  r.uploadedBy,
		UploadDate:  uploaded,
	}, nil
}

func (r *DatasetRepo) list(ctx context.Context, op, where string, params core.Params) ([]core.Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets_metadata`
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY dataset_id DESC`

	datasets := []core.Dataset{}
	err := r.store.FetchAll(ctx, query, params, func(scan ScanFunc) error {
		var row datasetRow
		if err := scan(row.dest()...); err != nil {
			return err
		}
		ds, err := row.dataset()
		if err != nil {
			return err
		}
		datasets = append(datasets, ds)
		return nil
	})
	if err != nil {
		return nil, core.WrapStore(op, err)
	}
	return datasets, nil
}

func (r *DatasetRepo) List(ctx context.Context) ([]core.Dataset, error) {
	return r.list(ctx, "list datasets", "", nil)
}

func (r *DatasetRepo) ListByUploader(ctx context.Context, uploadedBy string) ([]core.Dataset, error) {
	return r.list(ctx, "list datasets by uploader", `uploaded_by = {uploaded_by}`, core.Params{"uploaded_by": uploadedBy})
}

func (r *DatasetRepo) GetByID(ctx context.Context, id int64) (*core.Dataset, error) {
	var row datasetRow
	found, err := r.store.FetchOne(ctx,
		`SELECT `+datasetColumns+` FROM datasets_metadata WHERE dataset_id = {id}`,
		core.Params{"id": id}, row.dest()...)
	if err != nil {
		return nil, core.WrapStore("get dataset", err)
	}
	if !found {
		//nolint:nilnil
		return nil, nil
	}
	ds, err := row.dataset()
	if err != nil {
		return nil, core.WrapStore("get dataset", err)
	}
	return &ds, nil
}

func (r *DatasetRepo) Create(ctx context.Context, ds *core.Dataset) error {
	id, err := r.store.Insert(ctx, "datasets_metadata", "dataset_id", core.Params{
		"name":         ds.Name,
		"row_count":    ds.RowCount,
		"column_count": ds.ColumnCount,
		"uploaded_by":  ds.UploadedBy,
		"upload_date":  ds.UploadDate.Format(core.DateLayout),
	})
	if err != nil {
		return core.WrapStore("create dataset", err)
	}
	ds.ID = id
	return nil
}

func (r *DatasetRepo) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := r.store.Exec(ctx, `DELETE FROM datasets_metadata WHERE dataset_id = {id}`, core.Params{"id": id})
	if err != nil {
		return false, core.WrapStore("delete dataset", err)
	}
	return n > 0, nil
}

// Stats returns count, total rows and average column count. Empty tables yield zeros.
func (r *DatasetRepo) Stats(ctx context.Context) (core.DatasetStats, error) {
	var (
		count      int64
		totalRows  sql.NullInt64
		avgColumns sql.NullFloat64
	)
	_, err := r.store.FetchOne(ctx,
		`SELECT COUNT(*), SUM(row_count), AVG(column_count * 1.0) FROM datasets_metadata`,
		nil, &count, &totalRows, &avgColumns)
	if err != nil {
		return core.DatasetStats{}, core.WrapStore("dataset statistics", err)
	}
	return core.DatasetStats{
		DatasetCount: count,
		TotalRows:    totalRows.Int64,
		AvgColumns:   avgColumns.Float64,
	}, nil
}
