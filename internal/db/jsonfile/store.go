// Package jsonfile persists the chats and users collections as flat JSON
// documents, mirroring the data layout the server has always used:
// data/chats.json and data/users.json.
package jsonfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rcallen/chatd/internal/db"
	"github.com/rcallen/chatd/internal/models"
)

type chatsFile struct {
	Version int           `json:"version"`
	Chats   []models.Chat `json:"chats"`
}

type usersFile struct {
	Version int           `json:"version"`
	Root    *models.User  `json:"root,omitempty"`
	Members []models.User `json:"members"`
}

// Store implements db.ChatStore and db.UserStore over two JSON files in a
// single directory. All mutations run under a write lock, so concurrent
// read-modify-write cycles cannot lose updates within one process. Writes
// go through a temp file and rename, so a crash mid-save leaves the old
// file intact.
type Store struct {
	mu        sync.RWMutex
	chatsPath string
	usersPath string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data directory: %v", db.ErrStorage, err)
	}
	return &Store{
		chatsPath: filepath.Join(dir, "chats.json"),
		usersPath: filepath.Join(dir, "users.json"),
	}, nil
}

func (s *Store) LoadAll() ([]models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readChats()
}

func (s *Store) SaveAll(chats []models.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeChats(chats)
}

func (s *Store) FindByID(id string) (models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chats, err := s.readChats()
	if err != nil {
		return models.Chat{}, err
	}
	for _, c := range chats {
		if c.ID == id {
			return c, nil
		}
	}
	return models.Chat{}, db.ErrNotFound
}

func (s *Store) FindByOwner(owner string) ([]models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chats, err := s.readChats()
	if err != nil {
		return nil, err
	}
	owned := make([]models.Chat, 0)
	for _, c := range chats {
		if c.Owner == owner {
			owned = append(owned, c)
		}
	}
	return owned, nil
}

func (s *Store) Insert(chat models.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chats, err := s.readChats()
	if err != nil {
		return err
	}
	return s.writeChats(append(chats, chat))
}

func (s *Store) Update(id string, fn func(*models.Chat) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chats, err := s.readChats()
	if err != nil {
		return err
	}
	for i := range chats {
		if chats[i].ID != id {
			continue
		}
		if err := fn(&chats[i]); err != nil {
			return err
		}
		return s.writeChats(chats)
	}
	return db.ErrNotFound
}

func (s *Store) Delete(id, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chats, err := s.readChats()
	if err != nil {
		return err
	}
	kept := chats[:0]
	removed := false
	for _, c := range chats {
		if c.ID == id && c.Owner == owner {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	if !removed {
		return nil
	}
	return s.writeChats(kept)
}

func (s *Store) LoadUsers() (models.UserSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readUsers()
}

func (s *Store) UpdateUsers(fn func(*models.UserSet) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.readUsers()
	if err != nil {
		return err
	}
	if err := fn(&set); err != nil {
		return err
	}
	return s.writeUsers(set)
}

func (s *Store) readChats() ([]models.Chat, error) {
	data, err := os.ReadFile(s.chatsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.Chat{}, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", db.ErrStorage, s.chatsPath, err)
	}
	var f chatsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", db.ErrStorage, s.chatsPath, err)
	}
	if f.Chats == nil {
		f.Chats = []models.Chat{}
	}
	return f.Chats, nil
}

func (s *Store) writeChats(chats []models.Chat) error {
	return s.writeFile(s.chatsPath, chatsFile{Version: models.SchemaVersion, Chats: chats})
}

func (s *Store) readUsers() (models.UserSet, error) {
	data, err := os.ReadFile(s.usersPath)
	if err != nil {
		if os.IsNotExist(err) {
			return models.UserSet{Members: []models.User{}}, nil
		}
		return models.UserSet{}, fmt.Errorf("%w: read %s: %v", db.ErrStorage, s.usersPath, err)
	}
	var f usersFile
	if err := json.Unmarshal(data, &f); err != nil {
		return models.UserSet{}, fmt.Errorf("%w: parse %s: %v", db.ErrStorage, s.usersPath, err)
	}
	set := models.UserSet{Root: f.Root, Members: f.Members}
	if set.Members == nil {
		set.Members = []models.User{}
	}
	return set, nil
}

func (s *Store) writeUsers(set models.UserSet) error {
	return s.writeFile(s.usersPath, usersFile{
		Version: models.SchemaVersion,
		Root:    set.Root,
		Members: set.Members,
	})
}

// writeFile marshals v and replaces path atomically: the document lands in
// a temp file first and a rename swaps it in, so readers never observe a
// partial write.
func (s *Store) writeFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", db.ErrStorage, path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: temp file for %s: %v", db.ErrStorage, path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: write %s: %v", db.ErrStorage, path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: close %s: %v", db.ErrStorage, path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: replace %s: %v", db.ErrStorage, path, err)
	}
	return nil
}
