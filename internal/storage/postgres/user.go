package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/davrenn/emberfall/internal/game/player"
	"github.com/davrenn/emberfall/internal/game/world"
)

// ErrUserNotFound is returned when a user lookup yields no results.
var ErrUserNotFound = errors.New("user not found")

// ErrUsernameTaken is returned when attempting to create a duplicate username.
var ErrUsernameTaken = errors.New("username already taken")

// ErrInvalidCredentials is returned when authentication fails.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserRepository provides user persistence operations. It satisfies the
// combat engine's UserStore interface.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a UserRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `username, health, max_health, unconscious, room_id,
	       inventory, gold, silver, copper, created_at, updated_at`

// Create inserts a new user with a bcrypt-hashed password and starting stats.
//
// Precondition: username and password must be non-empty; maxHealth must be > 0;
// roomID must be a valid room ID.
// Postcondition: Returns the created Player at full health, or ErrUsernameTaken
// if the username is in use.
func (r *UserRepository) Create(ctx context.Context, username, password string, maxHealth int, roomID string) (*player.Player, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, health, max_health, room_id)
		VALUES ($1, $2, $3, $3, $4)
		RETURNING `+userColumns,
		username, hash, maxHealth, roomID,
	)
	p, err := scanUser(row)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	return p, nil
}

// Authenticate verifies credentials and returns the matching user record.
//
// Precondition: username and password must be non-empty.
// Postcondition: Returns the Player if credentials are valid,
// ErrUserNotFound if the username doesn't exist,
// or ErrInvalidCredentials if the password is wrong.
func (r *UserRepository) Authenticate(ctx context.Context, username, password string) (*player.Player, error) {
	var hash string
	err := r.db.QueryRow(ctx,
		`SELECT password_hash FROM users WHERE username = $1`,
		username,
	).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}

	if !CheckPassword(password, hash) {
		return nil, ErrInvalidCredentials
	}

	return r.GetUser(ctx, username)
}

// GetUser retrieves a user by username.
//
// Precondition: username must be non-empty.
// Postcondition: Returns the Player or ErrUserNotFound.
func (r *UserRepository) GetUser(ctx context.Context, username string) (*player.Player, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`,
		username,
	)
	p, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return p, nil
}

// UpdateUserStats applies a partial update of combat-relevant fields.
// Nil pointer fields in upd are left unchanged. An update with no fields
// set is a no-op.
//
// Precondition: username must be non-empty.
// Postcondition: Returns nil on success, ErrUserNotFound if no row updated.
func (r *UserRepository) UpdateUserStats(ctx context.Context, username string, upd player.StatsUpdate) error {
	sets := make([]string, 0, 4)
	args := []interface{}{username}

	if upd.Health != nil {
		args = append(args, *upd.Health)
		sets = append(sets, fmt.Sprintf("health = $%d", len(args)))
	}
	if upd.Unconscious != nil {
		args = append(args, *upd.Unconscious)
		sets = append(sets, fmt.Sprintf("unconscious = $%d", len(args)))
	}
	if upd.RoomID != nil {
		args = append(args, *upd.RoomID)
		sets = append(sets, fmt.Sprintf("room_id = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = NOW()")

	tag, err := r.db.Exec(ctx,
		`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE username = $1`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("updating user stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateUserInventory replaces the persisted inventory and currency.
//
// Precondition: username must be non-empty. items may be nil for an empty
// inventory.
// Postcondition: Returns nil on success, ErrUserNotFound if no row updated.
func (r *UserRepository) UpdateUserInventory(ctx context.Context, username string, items []string, cur world.Currency) error {
	if items == nil {
		items = []string{}
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET inventory = $2, gold = $3, silver = $4, copper = $5, updated_at = NOW()
		WHERE username = $1`,
		username, items, cur.Gold, cur.Silver, cur.Copper,
	)
	if err != nil {
		return fmt.Errorf("updating user inventory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*player.Player, error) {
	var p player.Player
	err := row.Scan(
		&p.Username, &p.Health, &p.MaxHealth, &p.Unconscious, &p.RoomID,
		&p.Inventory, &p.Currency.Gold, &p.Currency.Silver, &p.Currency.Copper,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// HashPassword creates a bcrypt hash of the given password.
//
// Precondition: password must be non-empty.
// Postcondition: Returns a bcrypt hash string.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
//
// Postcondition: Returns true if password matches the hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	// pgx wraps PostgreSQL errors; check for SQLSTATE 23505 (unique_violation)
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
