// Package settings persists user preferences and smart folders.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/docscan/internal/document"
)

const (
	bucketName = "settings"

	keyCloudSync     = "cloud_sync_enabled"
	keyEdgeDetection = "edge_detection_enabled"
	keySmartFolders  = "smart_folders"
)

// ErrFolderNotFound is returned when deleting an unknown folder
var ErrFolderNotFound = errors.New("smart folder not found")

// Settings are the persisted user preferences
type Settings struct {
	CloudSync     bool                   `json:"cloud_sync"`
	EdgeDetection bool                   `json:"edge_detection"`
	SmartFolders  []document.SmartFolder `json:"smart_folders"`
}

// Defaults has edge detection on and cloud sync off
func Defaults() Settings {
	return Settings{
		CloudSync:     false,
		EdgeDetection: true,
		SmartFolders:  []document.SmartFolder{},
	}
}

func (s Settings) clone() Settings {
	s.SmartFolders = slices.Clone(s.SmartFolders)
	if s.SmartFolders == nil {
		s.SmartFolders = []document.SmartFolder{}
	}
	return s
}

// Repository loads and saves Settings
type Repository interface {
	Load() (Settings, error)
	Save(s Settings) error
}

// BoltRepository stores each setting under its own key
type BoltRepository struct {
	db *bbolt.DB
}

// NewBoltRepository opens the database at path
func NewBoltRepository(path string) (*BoltRepository, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltRepository{db: db}, nil
}

// Load returns the stored settings. Missing keys keep their defaults.
func (b *BoltRepository) Load() (Settings, error) {
	s := Defaults()
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		for key, target := range map[string]any{
			keyCloudSync:     &s.CloudSync,
			keyEdgeDetection: &s.EdgeDetection,
			keySmartFolders:  &s.SmartFolders,
		} {
			data := bucket.Get([]byte(key))
			if data == nil {
				continue
			}
			if err := json.Unmarshal(data, target); err != nil {
				return fmt.Errorf("unmarshaling %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return Settings{}, err
	}
	return s.clone(), nil
}

// Save writes every setting in one transaction
func (b *BoltRepository) Save(s Settings) error {
	s = s.clone()
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		for key, value := range map[string]any{
			keyCloudSync:     s.CloudSync,
			keyEdgeDetection: s.EdgeDetection,
			keySmartFolders:  s.SmartFolders,
		} {
			data, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("marshaling %s: %w", key, err)
			}
			if err := bucket.Put([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the database
func (b *BoltRepository) Close() error {
	return b.db.Close()
}

// Manager caches the current settings and notifies listeners of changes
type Manager struct {
	repo Repository

	mu        sync.RWMutex
	current   Settings
	listeners []func(Settings)
}

// NewManager loads the current settings from repo
func NewManager(repo Repository) (*Manager, error) {
	current, err := repo.Load()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	return &Manager{repo: repo, current: current}, nil
}

// Current returns a copy of the settings
func (m *Manager) Current() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.clone()
}

// OnChange registers fn to run after every successful update
func (m *Manager) OnChange(fn func(Settings)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Update applies fn to a copy of the settings and persists the result. The
// settings are unchanged when fn or the save fails.
func (m *Manager) Update(fn func(*Settings) error) (Settings, error) {
	m.mu.Lock()
	next := m.current.clone()
	if err := fn(&next); err != nil {
		m.mu.Unlock()
		return Settings{}, err
	}
	if err := m.repo.Save(next); err != nil {
		m.mu.Unlock()
		return Settings{}, fmt.Errorf("saving settings: %w", err)
	}
	m.current = next
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()

	for _, listener := range listeners {
		listener(next.clone())
	}
	return next.clone(), nil
}

// SmartFolders returns the persisted folders in creation order
func (m *Manager) SmartFolders() []document.SmartFolder {
	return m.Current().SmartFolders
}

// Folder returns the folder with id
func (m *Manager) Folder(id string) (document.SmartFolder, bool) {
	for _, folder := range m.SmartFolders() {
		if folder.ID == id {
			return folder, true
		}
	}
	return document.SmartFolder{}, false
}

// AddFolder appends folder to the list
func (m *Manager) AddFolder(folder document.SmartFolder) error {
	_, err := m.Update(func(s *Settings) error {
		s.SmartFolders = append(s.SmartFolders, folder)
		return nil
	})
	return err
}

// DeleteFolder removes the folder with id
func (m *Manager) DeleteFolder(id string) error {
	_, err := m.Update(func(s *Settings) error {
		before := len(s.SmartFolders)
		s.SmartFolders = slices.DeleteFunc(s.SmartFolders, func(f document.SmartFolder) bool {
			return f.ID == id
		})
		if len(s.SmartFolders) == before {
			return fmt.Errorf("%w: %s", ErrFolderNotFound, id)
		}
		return nil
	})
	return err
}
