package models

import (
	"time"

	"gorm.io/gorm"
)

// GameSession represents one persistent world instance. The scheduler driver
// enumerates active sessions each tick; everything else is partitioned by
// session id.
type GameSession struct {
	ID              string         `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Name            string         `gorm:"column:name;type:varchar(100);not null" json:"name"`
	Active          bool           `gorm:"column:active;index:idx_active" json:"active"`
	TurnTermMinutes int            `gorm:"column:turn_term_minutes;default:10" json:"turn_term_minutes"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	DeletedAt       gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

// TableName specifies the table name for GameSession model
func (GameSession) TableName() string {
	return "game_sessions"
}

// Character is the engine's projection of a world character. The full
// character model (items, troops, commands) lives in the game service; the
// tournament engine only reads the combat stats and writes back rewards.
type Character struct {
	ID         int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SessionID  string         `gorm:"column:session_id;type:varchar(36);not null;index:idx_characters_session" json:"session_id"`
	Name       string         `gorm:"column:name;type:varchar(50);not null" json:"name"`
	NPC        bool           `gorm:"column:npc;default:false" json:"npc"`
	Leadership int            `gorm:"column:leadership;not null" json:"leadership"`
	Strength   int            `gorm:"column:strength;not null" json:"strength"`
	Intel      int            `gorm:"column:intel;not null" json:"intel"`
	Level      int            `gorm:"column:level;default:1" json:"level"`
	Gold       int            `gorm:"column:gold;default:0" json:"gold"`
	RankScore  int            `gorm:"column:rank_score;default:0" json:"rank_score"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	DeletedAt  gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

// TableName specifies the table name for Character model
func (Character) TableName() string {
	return "characters"
}

// TournamentEntry is one participant row within one stage group. Promotion
// between stages inserts a new row in the next group and leaves the old row
// as history; rows are never moved across groups in place.
//
// Group numbering: 0-7 qualifying groups, 10-17 finals round-robin groups,
// 20-27 round-of-16 matches, 30-33 quarterfinals, 40-41 semifinals, 50 the
// final, 60 the champion record. Within elimination groups slot 0 and 1 are
// the two sides of the match.
type TournamentEntry struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SessionID     string    `gorm:"column:session_id;type:varchar(36);not null;index:idx_session_group" json:"session_id"`
	GroupNo       int       `gorm:"column:group_no;not null;index:idx_session_group" json:"group_no"`
	Slot          int       `gorm:"column:slot;not null" json:"slot"`
	CharacterID   int64     `gorm:"column:character_id;not null;default:0" json:"character_id"`  // 0 = unnamed filler
	SourceEntryID int64     `gorm:"column:source_entry_id;default:0" json:"source_entry_id"` // entry this row was promoted from
	NPC           bool      `gorm:"column:npc;default:false" json:"npc"`
	Name          string    `gorm:"column:name;type:varchar(50);not null" json:"name"`
	Leadership    int       `gorm:"column:leadership;not null" json:"leadership"`
	Strength      int       `gorm:"column:strength;not null" json:"strength"`
	Intel         int       `gorm:"column:intel;not null" json:"intel"`
	Level         int       `gorm:"column:level;default:1" json:"level"`
	Win           int       `gorm:"column:win;default:0" json:"win"`
	Draw          int       `gorm:"column:draw;default:0" json:"draw"`
	Lose          int       `gorm:"column:lose;default:0" json:"lose"`
	Score         int       `gorm:"column:score;default:0" json:"score"`
	PromotionRank int       `gorm:"column:promotion_rank;default:0" json:"promotion_rank"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for TournamentEntry model
func (TournamentEntry) TableName() string {
	return "tournament_entries"
}

// BettingInstance is one wagering window over the round-of-16 qualifiers.
type BettingInstance struct {
	ID         string     `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	SessionID  string     `gorm:"column:session_id;type:varchar(36);not null;index:idx_betting_session" json:"session_id"`
	Status     string     `gorm:"column:status;type:varchar(16);default:open" json:"status"` // open, closed, settled
	Candidates string     `gorm:"column:candidates;type:json" json:"candidates"`             // entry id -> display label
	OpensAt    time.Time  `gorm:"column:opens_at;not null" json:"opens_at"`
	ClosesAt   time.Time  `gorm:"column:closes_at;not null" json:"closes_at"`
	WinnerID   *int64     `gorm:"column:winner_id" json:"winner_id,omitempty"`
	SettledAt  *time.Time `gorm:"column:settled_at" json:"settled_at,omitempty"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for BettingInstance model
func (BettingInstance) TableName() string {
	return "betting_instances"
}

// BettingTicket is one wager a character placed on a candidate.
type BettingTicket struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	BettingID   string    `gorm:"column:betting_id;type:varchar(36);not null;index:idx_betting" json:"betting_id"`
	CharacterID int64     `gorm:"column:character_id;not null" json:"character_id"`
	CandidateID int64     `gorm:"column:candidate_id;not null" json:"candidate_id"`
	Amount      int       `gorm:"column:amount;not null" json:"amount"`
	PaidOut     bool      `gorm:"column:paid_out;default:false" json:"paid_out"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for BettingTicket model
func (BettingTicket) TableName() string {
	return "betting_tickets"
}

// RewardPayout records one settled tournament reward. The unique index makes
// a replayed settlement a constraint violation instead of a double payment.
type RewardPayout struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SessionID   string    `gorm:"column:session_id;type:varchar(36);not null;uniqueIndex:unique_payout" json:"session_id"`
	CharacterID int64     `gorm:"column:character_id;not null;uniqueIndex:unique_payout" json:"character_id"`
	Placing     int       `gorm:"column:placing;not null;uniqueIndex:unique_payout" json:"placing"`
	Amount      int       `gorm:"column:amount;not null" json:"amount"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for RewardPayout model
func (RewardPayout) TableName() string {
	return "reward_payouts"
}

// NarrativeEvent is a fire-and-forget story log line.
type NarrativeEvent struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Scope     string    `gorm:"column:scope;type:varchar(64);not null;index:idx_scope" json:"scope"`
	Message   string    `gorm:"column:message;type:varchar(500);not null" json:"message"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for NarrativeEvent model
func (NarrativeEvent) TableName() string {
	return "narrative_events"
}

// StateEntry is one namespaced key/value document in the persistent state
// store. Values are JSON.
type StateEntry struct {
	Namespace string    `gorm:"column:namespace;type:varchar(64);primaryKey" json:"namespace"`
	Key       string    `gorm:"column:entry_key;type:varchar(128);primaryKey" json:"key"`
	Value     string    `gorm:"column:value;type:json" json:"value"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for StateEntry model
func (StateEntry) TableName() string {
	return "state_entries"
}
