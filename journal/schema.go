package journal

const Schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	snapshot_id TEXT PRIMARY KEY,
	captured_at DATETIME NOT NULL,
	net_liquidation REAL NOT NULL,
	available_cash REAL NOT NULL,
	unrealized_pnl REAL NOT NULL,
	realized_pnl REAL NOT NULL,
	margin_used REAL NOT NULL,
	margin_available REAL NOT NULL,
	margin_utilization REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_time ON snapshots(captured_at);

CREATE TABLE IF NOT EXISTS positions (
	snapshot_id TEXT NOT NULL REFERENCES snapshots(snapshot_id),
	instrument TEXT NOT NULL,
	quantity REAL NOT NULL,
	avg_cost REAL NOT NULL,
	market_price REAL NOT NULL,
	market_value REAL NOT NULL,
	unrealized_pnl REAL NOT NULL,
	weight REAL NOT NULL,
	PRIMARY KEY (snapshot_id, instrument)
);

CREATE TABLE IF NOT EXISTS orders (
	client_id TEXT PRIMARY KEY,
	time DATETIME NOT NULL,
	instrument TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity TEXT NOT NULL,
	ref_price REAL NOT NULL,
	strategy TEXT NOT NULL,
	mode TEXT NOT NULL,
	status TEXT NOT NULL,
	reason TEXT NOT NULL,
	order_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS alerts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	time DATETIME NOT NULL,
	dedup_key TEXT NOT NULL,
	kind TEXT NOT NULL,
	severity TEXT NOT NULL,
	message TEXT NOT NULL,
	count INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_key ON alerts(dedup_key);
`
