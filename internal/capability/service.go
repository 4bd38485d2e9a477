// Package capability answers "may this actor perform this action" and
// authenticates API tokens. The engine consumes it as an opaque boolean
// check; grants live in the capabilities table.
package capability

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidToken indicates a malformed or unknown API token.
var ErrInvalidToken = errors.New("invalid api token")

// Service resolves capabilities and API tokens.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs the capability service.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// CanPerform reports whether the actor holds the named capability.
func (s *Service) CanPerform(ctx context.Context, actor int64, action string) (bool, error) {
	action = strings.TrimSpace(strings.ToLower(action))
	if action == "" {
		return false, nil
	}
	var allowed bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM capabilities WHERE actor_id = $1 AND action = $2
		)`, actor, action).Scan(&allowed)
	if err != nil {
		return false, fmt.Errorf("capability lookup: %w", err)
	}
	return allowed, nil
}

// Grants returns every capability held by the actor.
func (s *Service) Grants(ctx context.Context, actor int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT action FROM capabilities WHERE actor_id = $1 ORDER BY action`, actor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []string
	for rows.Next() {
		var action string
		if err := rows.Scan(&action); err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, rows.Err()
}

// Authenticate resolves a bearer token of the form "<token_id>.<secret>" to
// an actor id. Secrets are bcrypt-hashed at rest.
func (s *Service) Authenticate(ctx context.Context, token string) (int64, error) {
	tokenID, secret, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok {
		return 0, ErrInvalidToken
	}
	id, err := strconv.ParseInt(tokenID, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}

	var actorID int64
	var secretHash []byte
	err = s.pool.QueryRow(ctx, `
		SELECT actor_id, secret_hash FROM api_tokens WHERE id = $1 AND revoked_at IS NULL`, id).
		Scan(&actorID, &secretHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrInvalidToken
		}
		return 0, fmt.Errorf("token lookup: %w", err)
	}
	if bcrypt.CompareHashAndPassword(secretHash, []byte(secret)) != nil {
		return 0, ErrInvalidToken
	}
	return actorID, nil
}
