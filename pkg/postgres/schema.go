package postgres

// Schema is idempotent DDL for the relational store.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS symbol_configs (
		symbol              TEXT PRIMARY KEY,
		weight_twitter      DOUBLE PRECISION NOT NULL DEFAULT 0.4,
		weight_reddit       DOUBLE PRECISION NOT NULL DEFAULT 0.3,
		weight_news         DOUBLE PRECISION NOT NULL DEFAULT 0.3,
		sentiment_threshold DOUBLE PRECISION NOT NULL DEFAULT 0.6,
		max_position_size   DOUBLE PRECISION NOT NULL DEFAULT 10000,
		is_active           BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS sentiment_observations (
		id          BIGSERIAL PRIMARY KEY,
		obs_id      TEXT NOT NULL UNIQUE,
		symbol      TEXT NOT NULL,
		source      TEXT NOT NULL CHECK (source IN ('twitter', 'reddit', 'news')),
		sentiment   DOUBLE PRECISION NOT NULL CHECK (sentiment BETWEEN -1 AND 1),
		confidence  DOUBLE PRECISION NOT NULL CHECK (confidence BETWEEN 0 AND 1),
		observed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_observations_symbol_time
		ON sentiment_observations (symbol, observed_at DESC)`,
	`CREATE TABLE IF NOT EXISTS positions (
		symbol           TEXT PRIMARY KEY,
		quantity         BIGINT NOT NULL CHECK (quantity >= 0),
		average_price    DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_known_price DOUBLE PRECISION NOT NULL DEFAULT 0,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS trades (
		id              UUID PRIMARY KEY,
		symbol          TEXT NOT NULL,
		side            TEXT NOT NULL CHECK (side IN ('BUY', 'SELL')),
		quantity        BIGINT NOT NULL,
		price           DOUBLE PRECISION NOT NULL,
		sentiment_score DOUBLE PRECISION,
		origin          TEXT NOT NULL,
		status          TEXT NOT NULL CHECK (status IN ('PENDING', 'FILLED', 'CANCELLED', 'REJECTED')),
		stage           TEXT NOT NULL,
		reason          TEXT NOT NULL DEFAULT '',
		broker_order_id TEXT NOT NULL DEFAULT '',
		filled_quantity BIGINT NOT NULL DEFAULT 0,
		fill_price      DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_symbol_created ON trades (symbol, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_stage ON trades (stage)`,
	`CREATE OR REPLACE VIEW active_sentiment_symbols AS
		SELECT o.symbol,
		       c.sentiment_threshold,
		       COUNT(*)::INT        AS observations,
		       MAX(o.observed_at)   AS last_observed_at
		FROM sentiment_observations o
		JOIN symbol_configs c ON c.symbol = o.symbol AND c.is_active
		WHERE o.observed_at > NOW() - INTERVAL '24 hours'
		GROUP BY o.symbol, c.sentiment_threshold`,
}
