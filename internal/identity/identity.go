package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrNotFound        = errors.New("player not found")
	ErrInvalidUsername = errors.New("invalid username")
)

// Identity is a resolved player claim.
type Identity struct {
	Id       string
	Username string
}

// Directory resolves a claimed player id to its canonical record.
type Directory interface {
	Resolve(ctx context.Context, claimedId string) (Identity, error)
}

// Player is the durable player record.
type Player struct {
	Id        string    `gorm:"primaryKey" json:"id"`
	Username  string    `json:"username"`
	NameKey   string    `gorm:"uniqueIndex" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// Store is a Directory backed by sqlite.
type Store struct {
	db *gorm.DB
}

// Open connects to the sqlite database at dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dsn, err)
	}

	if err := db.AutoMigrate(&Player{}); err != nil {
		return nil, fmt.Errorf("migrating players: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Resolve looks up a player by id and records that it was seen.
func (s *Store) Resolve(ctx context.Context, claimedId string) (Identity, error) {
	p, err := s.Get(ctx, claimedId)
	if err != nil {
		return Identity{}, err
	}

	err = s.db.WithContext(ctx).Model(&Player{}).Where("id = ?", p.Id).Update("last_seen", time.Now()).Error
	if err != nil {
		return Identity{}, fmt.Errorf("updating last_seen of %s: %w", p.Id, err)
	}

	return Identity{Id: p.Id, Username: p.Username}, nil
}

// Create registers a player, or returns the existing one when the username
// is already taken. Usernames are compared case-insensitively.
func (s *Store) Create(ctx context.Context, username string) (Player, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Player{}, fmt.Errorf("%w: empty", ErrInvalidUsername)
	}

	existing, err := s.GetByName(ctx, username)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Player{}, err
	}

	now := time.Now()
	p := Player{
		Id:        uuid.New().String(),
		Username:  username,
		NameKey:   nameKey(username),
		CreatedAt: now,
		LastSeen:  now,
	}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return Player{}, fmt.Errorf("creating player %q: %w", username, err)
	}

	return p, nil
}

func (s *Store) Get(ctx context.Context, id string) (Player, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *Store) GetByName(ctx context.Context, username string) (Player, error) {
	return s.first(ctx, "name_key = ?", nameKey(username))
}

// List returns every player ordered by username.
func (s *Store) List(ctx context.Context) ([]Player, error) {
	var ps []Player
	if err := s.db.WithContext(ctx).Order("name_key").Find(&ps).Error; err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	return ps, nil
}

// GetMany returns the players with the given ids; unknown ids are skipped.
func (s *Store) GetMany(ctx context.Context, ids []string) ([]Player, error) {
	ps := []Player{}
	if len(ids) == 0 {
		return ps, nil
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("name_key").Find(&ps).Error; err != nil {
		return nil, fmt.Errorf("loading players: %w", err)
	}
	return ps, nil
}

func (s *Store) first(ctx context.Context, query string, arg string) (Player, error) {
	var p Player
	err := s.db.WithContext(ctx).Where(query, arg).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Player{}, fmt.Errorf("%w: %s", ErrNotFound, arg)
		}
		return Player{}, fmt.Errorf("loading player %s: %w", arg, err)
	}
	return p, nil
}

// nameKey folds a username for case-insensitive uniqueness. Casers are
// stateful, so one is built per call.
func nameKey(username string) string {
	return cases.Fold().String(strings.TrimSpace(username))
}
