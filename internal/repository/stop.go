package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/brewstop/brewstop/internal/geo"
	"github.com/brewstop/brewstop/internal/models"
)

// stopColumns stops 表的查询列（与 scanStop 顺序一致）
const stopColumns = `id, nrel_id, name, address, city, state, zip, lat, lng, network,
	max_power_kw, connectors, has_ccs, has_nacs, has_chademo, total_stalls, available_stalls,
	cc_score, charge_score, brew_score, charge_score_json, brew_score_json,
	brew_score_computed_at, last_check_in_at, nrel_last_confirmed, last_verified_at,
	is_active, created_at, updated_at`

// StopRepository 充电站数据仓库
type StopRepository struct {
	db *DB
}

// NewStopRepository 创建充电站仓库
func NewStopRepository(db *DB) *StopRepository {
	return &StopRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStop(row rowScanner) (*models.Stop, error) {
	s := &models.Stop{}
	err := row.Scan(
		&s.ID,
		&s.NrelID,
		&s.Name,
		&s.Address,
		&s.City,
		&s.State,
		&s.Zip,
		&s.Lat,
		&s.Lng,
		&s.Network,
		&s.MaxPowerKw,
		&s.Connectors,
		&s.HasCcs,
		&s.HasNacs,
		&s.HasChademo,
		&s.TotalStalls,
		&s.AvailableStalls,
		&s.CcScore,
		&s.ChargeScoreValue,
		&s.BrewScoreValue,
		&s.ChargeScore,
		&s.BrewScore,
		&s.BrewScoreComputedAt,
		&s.LastCheckInAt,
		&s.NrelLastConfirmed,
		&s.LastVerifiedAt,
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByID 获取站点
func (r *StopRepository) GetByID(ctx context.Context, id string) (*models.Stop, error) {
	query := `SELECT ` + stopColumns + ` FROM stops WHERE id = $1`
	s, err := scanStop(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get stop: %w", err)
	}
	return s, nil
}

// IDsByNrelID 一次性加载全部 (nrel_id → 内部 id) 映射，
// 供注册表同步做批量对账，绝不按条回查
func (r *StopRepository) IDsByNrelID(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT nrel_id, id FROM stops`)
	if err != nil {
		return nil, fmt.Errorf("load stop ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]string)
	for rows.Next() {
		var nrelID, id string
		if err := rows.Scan(&nrelID, &id); err != nil {
			return nil, fmt.Errorf("scan stop id: %w", err)
		}
		ids[nrelID] = id
	}
	return ids, rows.Err()
}

// UpsertBatch 按 nrel_id 批量插入或更新站点（评分字段不在此覆盖）
func (r *StopRepository) UpsertBatch(ctx context.Context, stops []models.Stop) error {
	query := `
		INSERT INTO stops (id, nrel_id, name, address, city, state, zip, lat, lng, network,
			max_power_kw, connectors, has_ccs, has_nacs, has_chademo, total_stalls,
			nrel_last_confirmed, last_verified_at, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW(), $18, NOW())
		ON CONFLICT (nrel_id) DO UPDATE SET
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			zip = EXCLUDED.zip,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			network = EXCLUDED.network,
			max_power_kw = EXCLUDED.max_power_kw,
			connectors = EXCLUDED.connectors,
			has_ccs = EXCLUDED.has_ccs,
			has_nacs = EXCLUDED.has_nacs,
			has_chademo = EXCLUDED.has_chademo,
			total_stalls = EXCLUDED.total_stalls,
			nrel_last_confirmed = EXCLUDED.nrel_last_confirmed,
			last_verified_at = NOW(),
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
	`

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, s := range stops {
		_, err := tx.Exec(ctx, query,
			s.ID,
			s.NrelID,
			s.Name,
			s.Address,
			s.City,
			s.State,
			s.Zip,
			s.Lat,
			s.Lng,
			s.Network,
			s.MaxPowerKw,
			s.Connectors,
			s.HasCcs,
			s.HasNacs,
			s.HasChademo,
			s.TotalStalls,
			s.NrelLastConfirmed,
			s.IsActive,
		)
		if err != nil {
			return fmt.Errorf("upsert stop %s: %w", s.NrelID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert tx: %w", err)
	}
	return nil
}

// ListAll 获取全部站点（用于构建空间索引）
func (r *StopRepository) ListAll(ctx context.Context) ([]models.Stop, error) {
	query := `SELECT ` + stopColumns + ` FROM stops`
	return r.listStops(ctx, query)
}

// ListStale 获取评分过期的活跃站点，按最近更新排序
func (r *StopRepository) ListStale(ctx context.Context, threshold time.Time, limit int) ([]models.Stop, error) {
	query := `SELECT ` + stopColumns + ` FROM stops
		WHERE is_active = TRUE
		  AND (brew_score_computed_at IS NULL OR brew_score_computed_at < $1)
		ORDER BY updated_at DESC LIMIT $2`
	return r.listStops(ctx, query, threshold, limit)
}

// ListByBoundingBox 按地理包围盒查询站点（展示层读路径）
func (r *StopRepository) ListByBoundingBox(ctx context.Context, box geo.BoundingBox) ([]models.Stop, error) {
	query := `SELECT ` + stopColumns + ` FROM stops
		WHERE lat BETWEEN $1 AND $2 AND lng BETWEEN $3 AND $4 AND is_active = TRUE`
	return r.listStops(ctx, query, box.South, box.North, box.West, box.East)
}

func (r *StopRepository) listStops(ctx context.Context, query string, args ...any) ([]models.Stop, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stops: %w", err)
	}
	defer rows.Close()

	var stops []models.Stop
	for rows.Next() {
		s, err := scanStop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stop: %w", err)
		}
		stops = append(stops, *s)
	}
	return stops, rows.Err()
}

// UpdateScores 整体覆盖站点的两项评分（从不增量修补）
func (r *StopRepository) UpdateScores(ctx context.Context, stopID string, charge models.ChargeScore, brew models.BrewScore, computedAt time.Time) error {
	query := `
		UPDATE stops SET
			charge_score = $2,
			brew_score = $3,
			cc_score = $4,
			charge_score_json = $5,
			brew_score_json = $6,
			brew_score_computed_at = $7,
			updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.Pool.Exec(ctx, query,
		stopID,
		charge.Overall,
		brew.Overall,
		charge.Overall+brew.Overall,
		charge,
		brew,
		computedAt,
	)
	if err != nil {
		return fmt.Errorf("update stop scores: %w", err)
	}
	return nil
}

// CountByState 按州统计站点数（播种进度报告）
func (r *StopRepository) CountByState(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT state, COUNT(*) FROM stops GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("count stops by state: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("scan state count: %w", err)
		}
		counts[state] = count
	}
	return counts, rows.Err()
}
