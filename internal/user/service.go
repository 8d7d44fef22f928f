// Package user manages the account collection: the single root account
// provisioned at first run, and the member accounts root administers.
// Credential hashing and session mechanics live with the presentation
// layer; this service stores whatever opaque hash it is handed.
package user

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rcallen/chatd/internal/db"
	"github.com/rcallen/chatd/internal/models"
)

var (
	// ErrRootExists rejects a second root registration; root is
	// provisioned exactly once.
	ErrRootExists = errors.New("root user already registered")
	// ErrUserExists rejects duplicate usernames.
	ErrUserExists = errors.New("username already taken")
	// ErrNotFound means no account matches the username.
	ErrNotFound = errors.New("user not found")
	// ErrForbidden means the acting account lacks the root role.
	ErrForbidden = errors.New("root access required")
	// ErrInvalidInput covers empty usernames and credential hashes.
	ErrInvalidInput = errors.New("invalid input")
)

type Service struct {
	store db.UserStore
	log   *zap.Logger
	now   func() time.Time
}

func NewService(store db.UserStore, log *zap.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// RootRegistered reports whether first-run provisioning has happened.
func (s *Service) RootRegistered() (bool, error) {
	set, err := s.store.LoadUsers()
	if err != nil {
		return false, err
	}
	return set.Root != nil, nil
}

// RegisterRoot provisions the root account. It succeeds at most once per
// data directory.
func (s *Service) RegisterRoot(username, credentialHash string) error {
	username = strings.TrimSpace(username)
	if username == "" || credentialHash == "" {
		return ErrInvalidInput
	}
	err := s.store.UpdateUsers(func(set *models.UserSet) error {
		if set.Root != nil {
			return ErrRootExists
		}
		set.Root = &models.User{
			Username:       username,
			Role:           models.AccountRoot,
			CredentialHash: credentialHash,
			CreatedAt:      s.now(),
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("root user registered", zap.String("username", username))
	return nil
}

// AddMember creates a member account. Only root may do this; duplicate
// usernames (including the root name) are rejected.
func (s *Service) AddMember(actor, username, credentialHash, modelPreference string) error {
	username = strings.TrimSpace(username)
	if username == "" || credentialHash == "" {
		return ErrInvalidInput
	}
	err := s.store.UpdateUsers(func(set *models.UserSet) error {
		if err := requireRoot(set, actor); err != nil {
			return err
		}
		if set.Root.Username == username {
			return ErrUserExists
		}
		for _, m := range set.Members {
			if m.Username == username {
				return ErrUserExists
			}
		}
		set.Members = append(set.Members, models.User{
			Username:        username,
			Role:            models.AccountMember,
			CredentialHash:  credentialHash,
			ModelPreference: modelPreference,
			CreatedAt:       s.now(),
		})
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("member added", zap.String("username", username), zap.String("by", actor))
	return nil
}

// RemoveMember deletes a member account. Removing an unknown member is a
// no-op; root cannot be removed.
func (s *Service) RemoveMember(actor, username string) error {
	return s.store.UpdateUsers(func(set *models.UserSet) error {
		if err := requireRoot(set, actor); err != nil {
			return err
		}
		kept := set.Members[:0]
		for _, m := range set.Members {
			if m.Username != username {
				kept = append(kept, m)
			}
		}
		set.Members = kept
		return nil
	})
}

// SetModelPreference updates an account's default model.
func (s *Service) SetModelPreference(username, model string) error {
	return s.store.UpdateUsers(func(set *models.UserSet) error {
		if set.Root != nil && set.Root.Username == username {
			set.Root.ModelPreference = model
			return nil
		}
		for i := range set.Members {
			if set.Members[i].Username == username {
				set.Members[i].ModelPreference = model
				return nil
			}
		}
		return ErrNotFound
	})
}

// Lookup resolves a username to its account.
func (s *Service) Lookup(username string) (models.User, error) {
	set, err := s.store.LoadUsers()
	if err != nil {
		return models.User{}, err
	}
	if set.Root != nil && set.Root.Username == username {
		return *set.Root, nil
	}
	for _, m := range set.Members {
		if m.Username == username {
			return m, nil
		}
	}
	return models.User{}, ErrNotFound
}

// ListMembers returns the member list; root only.
func (s *Service) ListMembers(actor string) ([]models.User, error) {
	set, err := s.store.LoadUsers()
	if err != nil {
		return nil, err
	}
	if err := requireRoot(&set, actor); err != nil {
		return nil, err
	}
	return set.Members, nil
}

func requireRoot(set *models.UserSet, actor string) error {
	if set.Root == nil || set.Root.Username != actor {
		return ErrForbidden
	}
	return nil
}
