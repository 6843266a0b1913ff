package results

// Schema DDL for campaign results.
const (
	createCampaigns = `CREATE TABLE IF NOT EXISTS campaigns (
    campaign_id TEXT PRIMARY KEY,
    fidelity REAL NOT NULL,
    trials INTEGER NOT NULL,
    delay_ps INTEGER NOT NULL,
    expire_ps INTEGER NOT NULL,
    max_attempts INTEGER NOT NULL,
    seed INTEGER NOT NULL,
    created_at TEXT NOT NULL
);`

	createTrials = `CREATE TABLE IF NOT EXISTS trials (
    campaign_id TEXT NOT NULL REFERENCES campaigns(campaign_id),
    trial INTEGER NOT NULL,
    outcome TEXT NOT NULL,
    attempts INTEGER NOT NULL,
    expired INTEGER NOT NULL,
    final_fidelity REAL NOT NULL,
    sim_time_ps INTEGER NOT NULL,
    error TEXT,
    PRIMARY KEY (campaign_id, trial)
);`

	createTrialsOutcomeIndex = `CREATE INDEX IF NOT EXISTS idx_trials_outcome ON trials(campaign_id, outcome);`
)

var schema = []string{createCampaigns, createTrials, createTrialsOutcomeIndex}
