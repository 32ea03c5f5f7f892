package tokenstore

import (
	"bytes"
	"errors"
	"io/fs"

	"github.com/99designs/keyring"

	"github.com/relaychat/chatcore/internal/log"
)

// DefaultFilename is the credential file used when no other location is configured.
const DefaultFilename = "tokens.json"

// DefaultKeyringKey names the keyring item that holds the credential document.
const DefaultKeyringKey = "chatcore.tokens"

// Store persists Credentials between processes.
type Store interface {
	// Load returns the persisted Credentials. It returns false, and logs the reason, if the
	// backing document is missing, empty, unreadable or malformed.
	Load() (*Credentials, bool)

	// Save replaces the persisted document with c. Returned errors are *PersistenceError values.
	Save(c *Credentials) error
}

// FileStore keeps Credentials in a JSON file on the local filesystem.
type FileStore struct {
	Path string
}

// NewFileStore returns a FileStore backed by path, or DefaultFilename if path is empty.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultFilename
	}
	return &FileStore{Path: path}
}

func (s *FileStore) Load() (*Credentials, bool) {
	c, err := ImportFromFile(s.Path)
	if err == nil {
		log.Debug("Loaded %d cached token(s) from %s", len(c.Accounts()), s.Path)
		return c, true
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Debug("No token cache at %s", s.Path)
	case errors.Is(err, ErrEmpty):
		log.Warning("Token cache %s is empty, ignoring it", s.Path)
	default:
		log.Warning("Token cache %s is unreadable or malformed, ignoring it: %s", s.Path, err)
	}
	return nil, false
}

func (s *FileStore) Save(c *Credentials) error {
	if err := c.ExportToFile(s.Path); err != nil {
		return &PersistenceError{Op: "write", Target: s.Path, Err: err}
	}
	log.Debug("Saved token cache to %s", s.Path)
	return nil
}

// KeyringStore keeps the credential document as a single item in a system keyring.
type KeyringStore struct {
	Keyring keyring.Keyring
	Key     string
}

// NewKeyringStore returns a KeyringStore using key, or DefaultKeyringKey if key is empty.
func NewKeyringStore(kr keyring.Keyring, key string) *KeyringStore {
	if key == "" {
		key = DefaultKeyringKey
	}
	return &KeyringStore{Keyring: kr, Key: key}
}

func (s *KeyringStore) Load() (*Credentials, bool) {
	item, err := s.Keyring.Get(s.Key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			log.Debug("No token cache in keyring item %s", s.Key)
		} else {
			log.Warning("Could not read keyring item %s: %s", s.Key, err)
		}
		return nil, false
	}
	c, err := Import(bytes.NewReader(item.Data))
	if err != nil {
		log.Warning("Keyring item %s is malformed, ignoring it: %s", s.Key, err)
		return nil, false
	}
	return c, true
}

func (s *KeyringStore) Save(c *Credentials) error {
	var buffer bytes.Buffer
	if err := c.Export(&buffer); err != nil {
		return &PersistenceError{Op: "encode", Target: "keyring:" + s.Key, Err: err}
	}
	err := s.Keyring.Set(keyring.Item{
		Key:         s.Key,
		Data:        buffer.Bytes(),
		Label:       "chat session tokens",
		Description: "session tokens cached by chatcore",
	})
	if err != nil {
		return &PersistenceError{Op: "write", Target: "keyring:" + s.Key, Err: err}
	}
	return nil
}
