package repository

import (
	"context"
	"fmt"

	"github.com/brewstop/brewstop/internal/geo"
	"github.com/brewstop/brewstop/internal/models"
	"github.com/brewstop/brewstop/internal/pipeline"
)

// amenityColumns amenities 表的查询列（与 scanAmenity 顺序一致）
const amenityColumns = `id, stop_id, source_poi_id, name, brand, category, lat, lng,
	walk_meters, walk_minutes, hours, rating, is_indoor, has_wifi, has_free_restroom, hours_updated_at`

// AmenityRepository 便利设施数据仓库
type AmenityRepository struct {
	db *DB
}

// NewAmenityRepository 创建便利设施仓库
func NewAmenityRepository(db *DB) *AmenityRepository {
	return &AmenityRepository{db: db}
}

func scanAmenity(row rowScanner) (*models.Amenity, error) {
	a := &models.Amenity{}
	err := row.Scan(
		&a.ID,
		&a.StopID,
		&a.SourcePoiID,
		&a.Name,
		&a.Brand,
		&a.Category,
		&a.Lat,
		&a.Lng,
		&a.WalkMeters,
		&a.WalkMinutes,
		&a.Hours,
		&a.Rating,
		&a.IsIndoor,
		&a.HasWifi,
		&a.HasFreeRestroom,
		&a.HoursUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ExistingPairs 一次性加载全部已持久化的 (stop_id, source_poi_id) 键集，
// 供幂等写入器做启动时去重
func (r *AmenityRepository) ExistingPairs(ctx context.Context) (map[pipeline.PairKey]struct{}, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT stop_id, source_poi_id FROM amenities`)
	if err != nil {
		return nil, fmt.Errorf("load amenity pairs: %w", err)
	}
	defer rows.Close()

	pairs := make(map[pipeline.PairKey]struct{})
	for rows.Next() {
		var key pipeline.PairKey
		if err := rows.Scan(&key.StopID, &key.SourcePoiID); err != nil {
			return nil, fmt.Errorf("scan amenity pair: %w", err)
		}
		pairs[key] = struct{}{}
	}
	return pairs, rows.Err()
}

// InsertBatch 批量插入便利设施。ON CONFLICT DO NOTHING 兜底保证
// (stop_id, source_poi_id) 唯一，即使写入器的内存过滤集过期。
func (r *AmenityRepository) InsertBatch(ctx context.Context, amenities []models.Amenity) error {
	query := `
		INSERT INTO amenities (id, stop_id, source_poi_id, name, brand, category, lat, lng,
			walk_meters, walk_minutes, hours, rating, is_indoor, has_wifi, has_free_restroom, hours_updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (stop_id, source_poi_id) DO NOTHING
	`

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, a := range amenities {
		_, err := tx.Exec(ctx, query,
			a.ID,
			a.StopID,
			a.SourcePoiID,
			a.Name,
			a.Brand,
			a.Category,
			a.Lat,
			a.Lng,
			a.WalkMeters,
			a.WalkMinutes,
			a.Hours,
			a.Rating,
			a.IsIndoor,
			a.HasWifi,
			a.HasFreeRestroom,
			a.HoursUpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert amenity %s: %w", a.SourcePoiID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit insert tx: %w", err)
	}
	return nil
}

// ListByStop 获取站点关联的全部便利设施
func (r *AmenityRepository) ListByStop(ctx context.Context, stopID string) ([]models.Amenity, error) {
	query := `SELECT ` + amenityColumns + ` FROM amenities WHERE stop_id = $1 ORDER BY walk_meters`
	return r.listAmenities(ctx, query, stopID)
}

// ListByBoundingBox 按地理包围盒查询便利设施（展示层读路径）
func (r *AmenityRepository) ListByBoundingBox(ctx context.Context, box geo.BoundingBox) ([]models.Amenity, error) {
	query := `SELECT ` + amenityColumns + ` FROM amenities
		WHERE lat BETWEEN $1 AND $2 AND lng BETWEEN $3 AND $4`
	return r.listAmenities(ctx, query, box.South, box.North, box.West, box.East)
}

func (r *AmenityRepository) listAmenities(ctx context.Context, query string, args ...any) ([]models.Amenity, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list amenities: %w", err)
	}
	defer rows.Close()

	var amenities []models.Amenity
	for rows.Next() {
		a, err := scanAmenity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan amenity: %w", err)
		}
		amenities = append(amenities, *a)
	}
	return amenities, rows.Err()
}

// UpdateEnrichment 刷新增强字段（评分与访问标签），由邻近匹配驱动，
// 不依赖身份连续性
func (r *AmenityRepository) UpdateEnrichment(ctx context.Context, amenityID string, rating float64, hasWifi, hasFreeRestroom bool) error {
	query := `
		UPDATE amenities SET
			rating = $2,
			has_wifi = has_wifi OR $3,
			has_free_restroom = has_free_restroom OR $4
		WHERE id = $1
	`
	_, err := r.db.Pool.Exec(ctx, query, amenityID, rating, hasWifi, hasFreeRestroom)
	if err != nil {
		return fmt.Errorf("update amenity enrichment: %w", err)
	}
	return nil
}

// Count 便利设施总数（播种进度报告）
func (r *AmenityRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM amenities`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count amenities: %w", err)
	}
	return count, nil
}
