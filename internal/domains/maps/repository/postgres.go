package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mapvault-backend/internal/domains/maps/model"
	"mapvault-backend/internal/shared/utils"
	"mapvault-backend/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresRepository - raw SQL over pgxpool.
//
// Name uniqueness among non-deleted maps is backed by a partial unique index
// (see migrations/001_create_maps.sql); a violation surfaces as
// ErrMapNameTaken. Everything infrastructural wraps model.ErrStorage.
type postgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository - Constructor
func NewPostgresRepository(pool *pgxpool.Pool) MapRepository {
	return &postgresRepository{pool: pool}
}

const mapColumns = `id, name, type, status, submitter_id, difficulty, is_linear,
	download_url, file_hash, file_size, created_at, updated_at`

func scanMap(row pgx.Row) (*model.Map, error) {
	var m model.Map
	err := row.Scan(
		&m.ID, &m.Name, &m.Type, &m.Status, &m.SubmitterID, &m.Difficulty, &m.IsLinear,
		&m.DownloadURL, &m.FileHash, &m.FileSize, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", model.ErrStorage, op, err)
}

// isUniqueViolation matches the partial unique index on lower(name).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ============================================
// INSERT
// ============================================

func (r *postgresRepository) Insert(ctx context.Context, input model.MapInput) (*model.Map, error) {
	return database.WithTransactionResult(ctx, r.pool, func(tx pgx.Tx) (*model.Map, error) {
		return insertMapTx(ctx, tx, input)
	})
}

func (r *postgresRepository) InsertPending(ctx context.Context, input model.MapInput, pendingLimit int) (*model.Map, error) {
	return database.WithTransactionResult(ctx, r.pool, func(tx pgx.Tx) (*model.Map, error) {
		// Serialize concurrent creates by the same submitter so the quota
		// check and the insert are one atomic unit.
		_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, input.SubmitterID.String())
		if err != nil {
			return nil, storageErr("acquire submitter lock", err)
		}

		var pending int
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM maps WHERE submitter_id = $1 AND status = $2`,
			input.SubmitterID, model.StatusPending,
		).Scan(&pending)
		if err != nil {
			return nil, storageErr("count pending maps", err)
		}

		if pending >= pendingLimit {
			return nil, model.ErrPendingLimit
		}

		return insertMapTx(ctx, tx, input)
	})
}

func insertMapTx(ctx context.Context, tx pgx.Tx, input model.MapInput) (*model.Map, error) {
	now := time.Now().UTC()
	m := &model.Map{
		ID:          uuid.New(),
		Name:        input.Name,
		Type:        input.Type,
		Status:      model.StatusPending,
		SubmitterID: input.SubmitterID,
		Difficulty:  input.Difficulty,
		IsLinear:    input.IsLinear,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO maps (id, name, type, status, submitter_id, difficulty, is_linear, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, m.ID, m.Name, m.Type, m.Status, m.SubmitterID, m.Difficulty, m.IsLinear, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrMapNameTaken
		}
		return nil, storageErr("insert map", err)
	}

	for _, credit := range input.Credits {
		_, err := tx.Exec(ctx, `
			INSERT INTO map_credits (map_id, user_id, role)
			VALUES ($1, $2, $3)
		`, m.ID, credit.UserID, credit.Role)
		if err != nil {
			return nil, storageErr("insert map credit", err)
		}
		m.Credits = append(m.Credits, model.MapCredit{
			MapID:  m.ID,
			UserID: credit.UserID,
			Role:   credit.Role,
		})
	}

	return m, nil
}

// ============================================
// UPDATE
// ============================================

// Update applies a partial merge. Deleted maps are not updatable, which keeps
// the deleted state terminal.
func (r *postgresRepository) Update(ctx context.Context, mapID uuid.UUID, patch model.MapPatch) (*model.Map, error) {
	setClauses := []string{}
	args := []interface{}{}
	argIndex := 1

	addSet := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}

	if patch.Name != nil {
		addSet("name", *patch.Name)
	}
	if patch.Type != nil {
		addSet("type", *patch.Type)
	}
	if patch.Status != nil {
		addSet("status", *patch.Status)
	}
	if patch.Difficulty != nil {
		addSet("difficulty", *patch.Difficulty)
	}
	if patch.IsLinear != nil {
		addSet("is_linear", *patch.IsLinear)
	}
	if patch.DownloadURL != nil {
		addSet("download_url", *patch.DownloadURL)
	}
	addSet("updated_at", time.Now().UTC())

	query := fmt.Sprintf(`
		UPDATE maps
		SET %s
		WHERE id = $%d AND status <> $%d
		RETURNING %s
	`, joinWithComma(setClauses), argIndex, argIndex+1, mapColumns)
	args = append(args, mapID, model.StatusDeleted)

	m, err := scanMap(r.pool.QueryRow(ctx, query, args...))
	if err == pgx.ErrNoRows {
		return nil, model.ErrMapNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrMapNameTaken
		}
		return nil, storageErr("update map", err)
	}

	return m, nil
}

func joinWithComma(clauses []string) string {
	out := ""
	for i, c := range clauses {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

// ============================================
// LIST
// ============================================

func (r *postgresRepository) GetAll(ctx context.Context, filter *model.MapFilter, skip, take int) ([]model.Map, int, error) {
	whereClause, args := buildWhereClause(filter)
	argIndex := len(args) + 1

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM maps WHERE %s`, whereClause)
	var totalCount int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, storageErr("count maps", err)
	}

	listQuery := fmt.Sprintf(`
		SELECT %s
		FROM maps
		WHERE %s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d
	`, mapColumns, whereClause, argIndex, argIndex+1)
	args = append(args, take, skip)

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, storageErr("list maps", err)
	}
	defer rows.Close()

	maps := make([]model.Map, 0, take)
	for rows.Next() {
		m, err := scanMap(rows)
		if err != nil {
			return nil, 0, storageErr("scan map", err)
		}
		maps = append(maps, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storageErr("iterate maps", err)
	}

	if filter != nil && filter.ExpandImages && len(maps) > 0 {
		if err := r.attachImages(ctx, maps); err != nil {
			return nil, 0, err
		}
	}

	return maps, totalCount, nil
}

// buildWhereClause constructs the WHERE clause for a listing. Deleted maps
// are always excluded; unset filter fields add no condition.
func buildWhereClause(filter *model.MapFilter) (string, []interface{}) {
	conditions := []string{"status <> 'deleted'"}
	args := []interface{}{}
	argIndex := 1

	addCond := func(cond string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(cond, argIndex))
		args = append(args, value)
		argIndex++
	}

	if filter == nil {
		return utils.JoinWithAnd(conditions), args
	}

	if filter.Search != "" {
		addCond("name ILIKE '%%' || $%d || '%%'", filter.Search)
	}
	if filter.SubmitterID != nil {
		addCond("submitter_id = $%d", *filter.SubmitterID)
	}
	if filter.Type != nil {
		addCond("type = $%d", *filter.Type)
	}
	if filter.DifficultyLow != nil {
		addCond("difficulty >= $%d", *filter.DifficultyLow)
	}
	if filter.DifficultyHi != nil {
		addCond("difficulty <= $%d", *filter.DifficultyHi)
	}
	if filter.IsLinear != nil {
		addCond("is_linear = $%d", *filter.IsLinear)
	}

	return utils.JoinWithAnd(conditions), args
}

func (r *postgresRepository) attachImages(ctx context.Context, maps []model.Map) error {
	ids := make([]string, len(maps))
	for i := range maps {
		ids[i] = maps[i].ID.String()
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, map_id, url, sort_order
		FROM map_images
		WHERE map_id = ANY($1::uuid[])
		ORDER BY map_id, sort_order
	`, ids)
	if err != nil {
		return storageErr("list map images", err)
	}
	defer rows.Close()

	byMap := make(map[uuid.UUID][]model.MapImage)
	for rows.Next() {
		var img model.MapImage
		if err := rows.Scan(&img.ID, &img.MapID, &img.URL, &img.SortOrder); err != nil {
			return storageErr("scan map image", err)
		}
		byMap[img.MapID] = append(byMap[img.MapID], img)
	}
	if err := rows.Err(); err != nil {
		return storageErr("iterate map images", err)
	}

	for i := range maps {
		maps[i].Images = byMap[maps[i].ID]
	}
	return nil
}

// ============================================
// GET
// ============================================

func (r *postgresRepository) Get(ctx context.Context, mapID uuid.UUID, expand model.Expand) (*model.Map, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM maps
		WHERE id = $1 AND status <> $2
	`, mapColumns)

	m, err := scanMap(r.pool.QueryRow(ctx, query, mapID, model.StatusDeleted))
	if err == pgx.ErrNoRows {
		return nil, model.ErrMapNotFound
	}
	if err != nil {
		return nil, storageErr("get map", err)
	}

	if expand.Images {
		maps := []model.Map{*m}
		if err := r.attachImages(ctx, maps); err != nil {
			return nil, err
		}
		m.Images = maps[0].Images
	}

	if expand.Credits {
		credits, err := r.getCredits(ctx, mapID)
		if err != nil {
			return nil, err
		}
		m.Credits = credits
	}

	return m, nil
}

func (r *postgresRepository) getCredits(ctx context.Context, mapID uuid.UUID) ([]model.MapCredit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT map_id, user_id, role
		FROM map_credits
		WHERE map_id = $1
		ORDER BY role, user_id
	`, mapID)
	if err != nil {
		return nil, storageErr("list map credits", err)
	}
	defer rows.Close()

	credits := []model.MapCredit{}
	for rows.Next() {
		var c model.MapCredit
		if err := rows.Scan(&c.MapID, &c.UserID, &c.Role); err != nil {
			return nil, storageErr("scan map credit", err)
		}
		credits = append(credits, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate map credits", err)
	}
	return credits, nil
}

// ============================================
// CREDITS
// ============================================

// UpdateCredits bulk-updates credit rows. The Exec is awaited; by the time
// this returns the update is committed or has failed.
func (r *postgresRepository) UpdateCredits(ctx context.Context, criteria model.CreditFilter, patch model.CreditPatch) error {
	setClauses := []string{}
	args := []interface{}{}
	argIndex := 1

	addSet := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}

	if patch.UserID != nil {
		addSet("user_id", *patch.UserID)
	}
	if patch.Role != nil {
		addSet("role", *patch.Role)
	}
	if len(setClauses) == 0 {
		return nil
	}

	conditions := []string{}
	addCond := func(cond string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(cond, argIndex))
		args = append(args, value)
		argIndex++
	}

	if criteria.MapID != nil {
		addCond("map_id = $%d", *criteria.MapID)
	}
	if criteria.UserID != nil {
		addCond("user_id = $%d", *criteria.UserID)
	}
	if criteria.Role != nil {
		addCond("role = $%d", *criteria.Role)
	}
	if len(conditions) == 0 {
		return fmt.Errorf("update credits requires at least one criterion")
	}

	query := fmt.Sprintf(`UPDATE map_credits SET %s WHERE %s`,
		joinWithComma(setClauses), utils.JoinWithAnd(conditions))

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return storageErr("update map credits", err)
	}
	return nil
}

// ============================================
// SUBMISSION QUOTA / FILE INFO
// ============================================

func (r *postgresRepository) CountPending(ctx context.Context, submitterID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM maps WHERE submitter_id = $1 AND status = $2`,
		submitterID, model.StatusPending,
	).Scan(&count)
	if err != nil {
		return 0, storageErr("count pending maps", err)
	}
	return count, nil
}

func (r *postgresRepository) SetFileInfo(ctx context.Context, mapID uuid.UUID, hash string, size int64) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE maps
		SET file_hash = $1, file_size = $2, updated_at = $3
		WHERE id = $4 AND status <> $5
	`, hash, size, time.Now().UTC(), mapID, model.StatusDeleted)
	if err != nil {
		return storageErr("set file info", err)
	}

	if result.RowsAffected() == 0 {
		return model.ErrMapNotFound
	}
	return nil
}
