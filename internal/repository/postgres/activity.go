package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/healthdesk/admin-api/internal/model"
)

const activityColumns = `id, actor_id, actor_name, actor_role, action, details,
	entity_type, entity_id, metadata, ip_address, user_agent, created_at`

type activityRepository struct {
	BaseRepository
}

func (r *activityRepository) Create(ctx context.Context, log *model.ActivityLog) error {
	query := `
		INSERT INTO activity_logs (` + activityColumns + `)
		VALUES (:id, :actor_id, :actor_name, :actor_role, :action, :details,
			:entity_type, :entity_id, :metadata, :ip_address, :user_agent, :created_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("failed to create activity log: %w", err)
	}
	return nil
}

func (r *activityRepository) List(ctx context.Context, filter *model.ActivityFilter) ([]*model.ActivityLog, int64, error) {
	if filter == nil {
		filter = &model.ActivityFilter{}
	}

	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, val interface{}) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.ActorID != nil {
		add("actor_id = $%d", *filter.ActorID)
	}
	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if filter.EntityID != nil {
		add("entity_id = $%d", *filter.EntityID)
	}
	if filter.Since != nil {
		add("created_at >= $%d", *filter.Since)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM activity_logs`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count activity logs: %w", err)
	}

	offset := filter.Pagination.Normalize()
	args = append(args, filter.PageSize, offset)
	query := fmt.Sprintf(`SELECT %s FROM activity_logs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		activityColumns, where, len(args)-1, len(args))

	logs := []*model.ActivityLog{}
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list activity logs: %w", err)
	}
	return logs, total, nil
}

func (r *activityRepository) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM activity_logs WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup activity logs: %w", err)
	}
	return res.RowsAffected()
}
