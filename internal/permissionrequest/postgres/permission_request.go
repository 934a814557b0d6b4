package postgres

import (
	"context"
	"errors"

	prDatamodel "github.com/frahmantamala/event-permission/internal/core/datamodel/permissionrequest"
	"github.com/frahmantamala/event-permission/internal/permissionrequest"
	"gorm.io/gorm"
)

// PermissionRequestRepository implements permissionrequest.Repository using GORM
type PermissionRequestRepository struct {
	db *gorm.DB
}

func NewPermissionRequestRepository(db *gorm.DB) *PermissionRequestRepository {
	return &PermissionRequestRepository{db: db}
}

func (r *PermissionRequestRepository) Create(ctx context.Context, req *prDatamodel.PermissionRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *PermissionRequestRepository) GetByID(ctx context.Context, id string) (*prDatamodel.PermissionRequest, error) {
	var req prDatamodel.PermissionRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, permissionrequest.ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (r *PermissionRequestRepository) List(ctx context.Context, filter permissionrequest.Filter) ([]*prDatamodel.PermissionRequest, error) {
	var rows []*prDatamodel.PermissionRequest
	q := r.scoped(ctx, filter)

	switch filter.Order {
	case permissionrequest.OrderRespondedDesc:
		q = q.Order("responded_at DESC").Order("created_at DESC")
	default:
		q = q.Order("created_at DESC")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	err := q.Find(&rows).Error
	return rows, err
}

// CountByStatus groups the filtered rows by status.
func (r *PermissionRequestRepository) CountByStatus(ctx context.Context, filter permissionrequest.Filter) ([]prDatamodel.StatusCount, error) {
	var counts []prDatamodel.StatusCount
	err := r.scoped(ctx, filter).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&counts).Error
	return counts, err
}

func (r *PermissionRequestRepository) CountDistinctStudents(ctx context.Context, departmentID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&prDatamodel.PermissionRequest{}).
		Where("department_id = ?", departmentID).
		Distinct("student_id").
		Count(&n).Error
	return n, err
}

// Respond writes the response fields only while the row is still pending.
func (r *PermissionRequestRepository) Respond(ctx context.Context, id string, resp permissionrequest.Response) error {
	result := r.db.WithContext(ctx).
		Model(&prDatamodel.PermissionRequest{}).
		Where("id = ? AND status = ?", id, string(permissionrequest.StatusPending)).
		Updates(map[string]interface{}{
			"status":           string(resp.Status),
			"response_message": resp.Message,
			"responded_by":     resp.RespondedBy,
			"responded_at":     resp.RespondedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return permissionrequest.ErrNotPending
	}
	return nil
}

func (r *PermissionRequestRepository) scoped(ctx context.Context, filter permissionrequest.Filter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&prDatamodel.PermissionRequest{})
	if filter.StudentID != "" {
		q = q.Where("student_id = ?", filter.StudentID)
	}
	if filter.DepartmentID != "" {
		q = q.Where("department_id = ?", filter.DepartmentID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}
	return q
}
