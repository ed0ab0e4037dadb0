package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/greenledger/greenledger-api/internal/pkg/jwt"
)

// Service is the user-directory collaborator: it registers identities and
// resolves display names. The credit engine only ever sees the opaque ids.
type Service struct {
	repo Repository
	jwt  *jwt.Service
}

func NewService(repo Repository, jwtService *jwt.Service) *Service {
	return &Service{repo: repo, jwt: jwtService}
}

// Login finds or registers the user and issues an identity token. A known
// username keeps its registered role; the requested role only applies on
// first registration.
func (s *Service) Login(ctx context.Context, username string, role Role) (*User, string, error) {
	switch role {
	case RoleProducer, RoleBuyer, RoleRegulator:
	default:
		return nil, "", ErrInvalidRole
	}

	u, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		u = &User{
			ID:        uuid.New(),
			Username:  username,
			Role:      role,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.repo.Create(ctx, u); err != nil {
			return nil, "", err
		}
	} else if err != nil {
		return nil, "", err
	}

	token, err := s.jwt.Generate(u.ID, u.Username, string(u.Role))
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Get returns a single directory entry.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// DisplayNames resolves ids to usernames. Unknown ids map to "Unknown"; the
// nil id (the mint source) maps to "System".
func (s *Service) DisplayNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	lookup := ids[:0:0]
	for _, id := range ids {
		if id != uuid.Nil {
			lookup = append(lookup, id)
		}
	}

	users, err := s.repo.GetByIDs(ctx, lookup)
	if err != nil {
		return nil, err
	}

	names := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		switch {
		case id == uuid.Nil:
			names[id] = "System"
		case users[id] != nil:
			names[id] = users[id].Username
		default:
			names[id] = "Unknown"
		}
	}
	return names, nil
}
