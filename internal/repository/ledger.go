package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clanelo/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique name is already taken
	ErrDuplicate = errors.New("duplicate record")
)

// Ledger is the persistence collaborator of the rating engine. Every method
// runs against the transaction when obtained through WithTx.
type Ledger interface {
	WithTx(ctx context.Context, fn func(tx Ledger) error) error

	GetPlayer(ctx context.Context, id uint) (*models.Player, error)
	ListPlayers(ctx context.Context) ([]models.Player, error)
	CreatePlayer(ctx context.Context, p *models.Player) error
	SavePlayerAggregate(ctx context.Context, p *models.Player) error

	GetTournament(ctx context.Context, id uint) (*models.Tournament, error)
	ListTournaments(ctx context.Context) ([]models.Tournament, error)
	CreateTournament(ctx context.Context, t *models.Tournament) error

	GetDivision(ctx context.Context, tournamentID, divisionID uint) (*models.Division, error)
	GetDivisionByID(ctx context.Context, id uint) (*models.Division, error)
	ListDivisions(ctx context.Context, tournamentID *uint) ([]models.Division, error)
	CreateDivision(ctx context.Context, d *models.Division) error
	UpdateDivisionBaseline(ctx context.Context, id uint, startingRating int) error
	GetDivisionMember(ctx context.Context, tournamentID, playerID uint) (*models.DivisionMember, error)
	ListDivisionMembers(ctx context.Context, tournamentID *uint) ([]models.DivisionMember, error)
	AssignDivision(ctx context.Context, m *models.DivisionMember) error

	AppendMatch(ctx context.Context, m *models.Match) error
	GetMatch(ctx context.Context, id uint) (*models.Match, error)
	UpdateMatch(ctx context.Context, m *models.Match) error
	SaveMatchSnapshots(ctx context.Context, matches []models.Match, batchSize int) error
	DeleteMatch(ctx context.Context, id uint) error
	ListMatches(ctx context.Context, tournamentID *uint) ([]models.Match, error)
	ListPlayerMatches(ctx context.Context, playerID uint, limit int) ([]models.Match, error)
	HasMatchesAfter(ctx context.Context, m *models.Match) (bool, error)

	GetTournamentStats(ctx context.Context, playerID, tournamentID uint) (*models.PlayerTournamentStats, error)
	ListTournamentStats(ctx context.Context, tournamentID uint) ([]models.PlayerTournamentStats, error)
	ListPlayerStats(ctx context.Context, playerID uint) ([]models.PlayerTournamentStats, error)
	UpsertTournamentStats(ctx context.Context, s *models.PlayerTournamentStats) error
	InsertTournamentStats(ctx context.Context, stats []models.PlayerTournamentStats, batchSize int) error
	DeleteTournamentStats(ctx context.Context, tournamentID *uint) error
}

// counterColumns are the embedded rating.Counters columns
var counterColumns = []string{
	"matches_played", "wins", "draws", "losses",
	"goals_for", "goals_against", "clean_sheets", "golden_glove_points",
}

// LedgerRepository handles all relational operations through GORM
type LedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{
		db: db,
	}
}

// WithTx runs fn inside a transaction; any error rolls everything back
func (r *LedgerRepository) WithTx(ctx context.Context, fn func(tx Ledger) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&LedgerRepository{db: tx})
	})
}

func notFound(err error, what string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %v", ErrNotFound, what, id)
	}
	return err
}

// duplicate needs gorm.Config.TranslateError
func duplicate(err error, what, name string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s %q", ErrDuplicate, what, name)
	}
	return err
}

// --- players ---

func (r *LedgerRepository) GetPlayer(ctx context.Context, id uint) (*models.Player, error) {
	var p models.Player
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err, "player", id)
	}
	return &p, nil
}

func (r *LedgerRepository) ListPlayers(ctx context.Context) ([]models.Player, error) {
	var players []models.Player
	err := r.db.WithContext(ctx).Order("id").Find(&players).Error
	return players, err
}

func (r *LedgerRepository) CreatePlayer(ctx context.Context, p *models.Player) error {
	return duplicate(r.db.WithContext(ctx).Create(p).Error, "player", p.Name)
}

// SavePlayerAggregate writes the global rating and counters of a player,
// zero values and a nil rating included
func (r *LedgerRepository) SavePlayerAggregate(ctx context.Context, p *models.Player) error {
	columns := append([]string{"rating", "updated_at"}, counterColumns...)
	res := r.db.WithContext(ctx).Model(p).Select(columns).Updates(p)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: player %d", ErrNotFound, p.ID)
	}
	return nil
}

// --- tournaments and divisions ---

func (r *LedgerRepository) GetTournament(ctx context.Context, id uint) (*models.Tournament, error) {
	var t models.Tournament
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, notFound(err, "tournament", id)
	}
	return &t, nil
}

func (r *LedgerRepository) ListTournaments(ctx context.Context) ([]models.Tournament, error) {
	var out []models.Tournament
	err := r.db.WithContext(ctx).Order("id").Find(&out).Error
	return out, err
}

func (r *LedgerRepository) CreateTournament(ctx context.Context, t *models.Tournament) error {
	return duplicate(r.db.WithContext(ctx).Create(t).Error, "tournament", t.Name)
}

// GetDivision returns a division only if it belongs to the tournament
func (r *LedgerRepository) GetDivision(ctx context.Context, tournamentID, divisionID uint) (*models.Division, error) {
	var d models.Division
	err := r.db.WithContext(ctx).
		Where("id = ? AND tournament_id = ?", divisionID, tournamentID).
		First(&d).Error
	if err != nil {
		return nil, notFound(err, "division", divisionID)
	}
	return &d, nil
}

func (r *LedgerRepository) GetDivisionByID(ctx context.Context, id uint) (*models.Division, error) {
	var d models.Division
	if err := r.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, notFound(err, "division", id)
	}
	return &d, nil
}

func (r *LedgerRepository) ListDivisions(ctx context.Context, tournamentID *uint) ([]models.Division, error) {
	q := r.db.WithContext(ctx).Order("id")
	if tournamentID != nil {
		q = q.Where("tournament_id = ?", *tournamentID)
	}
	var out []models.Division
	err := q.Find(&out).Error
	return out, err
}

func (r *LedgerRepository) CreateDivision(ctx context.Context, d *models.Division) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *LedgerRepository) UpdateDivisionBaseline(ctx context.Context, id uint, startingRating int) error {
	res := r.db.WithContext(ctx).Model(&models.Division{}).
		Where("id = ?", id).
		Update("starting_rating", startingRating)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: division %d", ErrNotFound, id)
	}
	return nil
}

// GetDivisionMember returns nil without error when the player is unassigned
func (r *LedgerRepository) GetDivisionMember(ctx context.Context, tournamentID, playerID uint) (*models.DivisionMember, error) {
	var m models.DivisionMember
	err := r.db.WithContext(ctx).
		Where("tournament_id = ? AND player_id = ?", tournamentID, playerID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *LedgerRepository) ListDivisionMembers(ctx context.Context, tournamentID *uint) ([]models.DivisionMember, error) {
	q := r.db.WithContext(ctx).Order("id")
	if tournamentID != nil {
		q = q.Where("tournament_id = ?", *tournamentID)
	}
	var out []models.DivisionMember
	err := q.Find(&out).Error
	return out, err
}

// AssignDivision moves the player into the division, replacing any earlier assignment
func (r *LedgerRepository) AssignDivision(ctx context.Context, m *models.DivisionMember) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tournament_id"}, {Name: "player_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"division_id"}),
	}).Create(m).Error
}

// --- ledger ---

func (r *LedgerRepository) AppendMatch(ctx context.Context, m *models.Match) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *LedgerRepository) GetMatch(ctx context.Context, id uint) (*models.Match, error) {
	var m models.Match
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFound(err, "match", id)
	}
	return &m, nil
}

func (r *LedgerRepository) UpdateMatch(ctx context.Context, m *models.Match) error {
	res := r.db.WithContext(ctx).Save(m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: match %d", ErrNotFound, m.ID)
	}
	return nil
}

// SaveMatchSnapshots rewrites existing entries in chunks of batchSize
func (r *LedgerRepository) SaveMatchSnapshots(ctx context.Context, matches []models.Match, batchSize int) error {
	if len(matches) == 0 {
		return nil
	}
	now := time.Now()
	for i := range matches {
		matches[i].UpdatedAt = now
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"goals1", "goals2", "is_draw", "is_walkover", "is_null_match",
			"player1_absent", "player2_absent", "winner_id",
			"rating_before1", "rating_after1", "rating_before2", "rating_after2", "updated_at",
		}),
	}).CreateInBatches(&matches, batchSize).Error
}

func (r *LedgerRepository) DeleteMatch(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Match{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: match %d", ErrNotFound, id)
	}
	return nil
}

// ListMatches returns the ledger (or one tournament's slice) in replay order
func (r *LedgerRepository) ListMatches(ctx context.Context, tournamentID *uint) ([]models.Match, error) {
	q := r.db.WithContext(ctx).Order("id")
	if tournamentID != nil {
		q = q.Where("tournament_id = ?", *tournamentID)
	}
	var out []models.Match
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	models.SortLedger(out)
	return out, nil
}

// ListPlayerMatches returns the player's latest entries, newest first
func (r *LedgerRepository) ListPlayerMatches(ctx context.Context, playerID uint, limit int) ([]models.Match, error) {
	var out []models.Match
	err := r.db.WithContext(ctx).
		Where("player1_id = ? OR player2_id = ?", playerID, playerID).
		Order("played_at DESC").Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// HasMatchesAfter reports whether the tournament holds an entry that sorts after m
func (r *LedgerRepository) HasMatchesAfter(ctx context.Context, m *models.Match) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.Match{}).
		Where("tournament_id = ? AND id <> ?", m.TournamentID, m.ID)
	if m.PlayedAt == nil {
		q = q.Where("played_at IS NOT NULL OR id > ?", m.ID)
	} else {
		q = q.Where("played_at > ? OR (played_at = ? AND id > ?)", *m.PlayedAt, *m.PlayedAt, m.ID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// --- tournament stats ---

// GetTournamentStats returns nil without error before the player's first match in the tournament
func (r *LedgerRepository) GetTournamentStats(ctx context.Context, playerID, tournamentID uint) (*models.PlayerTournamentStats, error) {
	var s models.PlayerTournamentStats
	err := r.db.WithContext(ctx).
		Where("player_id = ? AND tournament_id = ?", playerID, tournamentID).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListTournamentStats returns standings ordered by scoped rating
func (r *LedgerRepository) ListTournamentStats(ctx context.Context, tournamentID uint) ([]models.PlayerTournamentStats, error) {
	var out []models.PlayerTournamentStats
	err := r.db.WithContext(ctx).
		Where("tournament_id = ?", tournamentID).
		Order("rating DESC").Order("player_id").
		Find(&out).Error
	return out, err
}

func (r *LedgerRepository) ListPlayerStats(ctx context.Context, playerID uint) ([]models.PlayerTournamentStats, error) {
	var out []models.PlayerTournamentStats
	err := r.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("tournament_id").
		Find(&out).Error
	return out, err
}

// UpsertTournamentStats creates or updates the aggregate of one (player, tournament)
// Uses ON CONFLICT to handle upserts efficiently
func (r *LedgerRepository) UpsertTournamentStats(ctx context.Context, s *models.PlayerTournamentStats) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}, {Name: "tournament_id"}},
		DoUpdates: clause.AssignmentColumns(append([]string{"rating", "updated_at"}, counterColumns...)),
	}).Create(s).Error
}

// InsertTournamentStats bulk inserts freshly rebuilt aggregates
func (r *LedgerRepository) InsertTournamentStats(ctx context.Context, stats []models.PlayerTournamentStats, batchSize int) error {
	if len(stats) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&stats, batchSize).Error
}

// DeleteTournamentStats wipes one tournament's aggregates, or all of them when tournamentID is nil
func (r *LedgerRepository) DeleteTournamentStats(ctx context.Context, tournamentID *uint) error {
	q := r.db.WithContext(ctx)
	if tournamentID != nil {
		return q.Where("tournament_id = ?", *tournamentID).Delete(&models.PlayerTournamentStats{}).Error
	}
	return q.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.PlayerTournamentStats{}).Error
}

// Ping checks if database is reachable
func (r *LedgerRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (r *LedgerRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate runs database migrations
func (r *LedgerRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&models.Player{},
		&models.Tournament{},
		&models.Division{},
		&models.DivisionMember{},
		&models.Match{},
		&models.PlayerTournamentStats{},
	)
}
