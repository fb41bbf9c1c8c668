package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB 数据库连接池封装
type DB struct {
	Pool *pgxpool.Pool
}

// New 创建数据库连接
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	// 连接池配置
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// 测试连接
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close 关闭连接池
func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate 执行数据库迁移
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationCreateStops,
		migrationCreateAmenities,
	}

	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// 数据库迁移 SQL
const migrationCreateStops = `
CREATE TABLE IF NOT EXISTS stops (
    id UUID PRIMARY KEY,
    nrel_id TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    address TEXT NOT NULL DEFAULT '',
    city TEXT NOT NULL DEFAULT '',
    state TEXT NOT NULL DEFAULT '',
    zip TEXT NOT NULL DEFAULT '',
    lat DOUBLE PRECISION NOT NULL,
    lng DOUBLE PRECISION NOT NULL,
    network TEXT NOT NULL DEFAULT 'Unknown',
    max_power_kw DOUBLE PRECISION NOT NULL DEFAULT 0,
    connectors JSONB NOT NULL DEFAULT '[]',
    has_ccs BOOLEAN NOT NULL DEFAULT FALSE,
    has_nacs BOOLEAN NOT NULL DEFAULT FALSE,
    has_chademo BOOLEAN NOT NULL DEFAULT FALSE,
    total_stalls INT NOT NULL DEFAULT 0,
    available_stalls INT NOT NULL DEFAULT 0,
    cc_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    charge_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    brew_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    charge_score_json JSONB,
    brew_score_json JSONB,
    brew_score_computed_at TIMESTAMP WITH TIME ZONE,
    last_check_in_at TIMESTAMP WITH TIME ZONE,
    nrel_last_confirmed TIMESTAMP WITH TIME ZONE,
    last_verified_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_stops_nrel_id ON stops(nrel_id);
CREATE INDEX IF NOT EXISTS idx_stops_state ON stops(state);
CREATE INDEX IF NOT EXISTS idx_stops_lat_lng ON stops(lat, lng);
CREATE INDEX IF NOT EXISTS idx_stops_brew_score_computed_at ON stops(brew_score_computed_at);
CREATE INDEX IF NOT EXISTS idx_stops_is_active ON stops(is_active);
`

const migrationCreateAmenities = `
CREATE TABLE IF NOT EXISTS amenities (
    id UUID PRIMARY KEY,
    stop_id UUID NOT NULL REFERENCES stops(id),
    source_poi_id TEXT NOT NULL,
    name TEXT NOT NULL,
    brand TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL,
    lat DOUBLE PRECISION NOT NULL,
    lng DOUBLE PRECISION NOT NULL,
    walk_meters INT NOT NULL DEFAULT 0,
    walk_minutes INT NOT NULL DEFAULT 1,
    hours TEXT,
    rating DOUBLE PRECISION NOT NULL DEFAULT 0,
    is_indoor BOOLEAN NOT NULL DEFAULT FALSE,
    has_wifi BOOLEAN NOT NULL DEFAULT FALSE,
    has_free_restroom BOOLEAN NOT NULL DEFAULT FALSE,
    hours_updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    UNIQUE (stop_id, source_poi_id)
);
CREATE INDEX IF NOT EXISTS idx_amenities_stop_id ON amenities(stop_id);
CREATE INDEX IF NOT EXISTS idx_amenities_category ON amenities(category);
CREATE INDEX IF NOT EXISTS idx_amenities_lat_lng ON amenities(lat, lng);
`
