package tokenstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// CurrentVersion is the version tag written to new documents.
const CurrentVersion = 1

var (
	// ErrEmpty indicates a credential document contained no data.
	ErrEmpty = errors.New("credential document is empty")
	// ErrPersistence matches every *PersistenceError.
	ErrPersistence = errors.New("credential persistence failed")
)

// PersistenceError describes a failure to read or write credentials. These errors are never fatal
// to authentication; callers log them and continue without persisted tokens.
type PersistenceError struct {
	Op     string
	Target string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("could not %s credentials at %s: %s", e.Op, e.Target, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// Credentials maps account identifiers to session tokens.
type Credentials struct {
	Version int
	tokens  map[string]string
	// Top-level fields this package doesn't understand, preserved on export.
	extra map[string]json.RawMessage
	lock  sync.Mutex
}

// New returns an empty set of Credentials tagged with CurrentVersion.
func New() *Credentials {
	return &Credentials{
		Version: CurrentVersion,
		tokens:  make(map[string]string),
	}
}

// Import Credentials using data in r.
//
// Only the "tokens" field is required to be well-formed. A missing or unknown version is accepted,
// and a missing tokens field yields an empty mapping.
func Import(r io.Reader) (*Credentials, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmpty
	}
	c := New()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ImportFromFile reads Credentials from disk.
func ImportFromFile(filename string) (*Credentials, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Import(file)
}

func (c *Credentials) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	tokens := make(map[string]string)
	if raw, ok := fields["tokens"]; ok {
		if err := json.Unmarshal(raw, &tokens); err != nil {
			return fmt.Errorf("invalid tokens field: %w", err)
		}
		if tokens == nil {
			// "tokens": null
			tokens = make(map[string]string)
		}
		delete(fields, "tokens")
	}
	version := 0
	if raw, ok := fields["version"]; ok {
		if err := json.Unmarshal(raw, &version); err != nil {
			return fmt.Errorf("invalid version field: %w", err)
		}
		delete(fields, "version")
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	c.Version = version
	c.tokens = tokens
	c.extra = fields
	return nil
}

func (c *Credentials) MarshalJSON() ([]byte, error) {
	fields := make(map[string]interface{}, len(c.extra)+2)
	for k, v := range c.extra {
		fields[k] = v
	}
	version := c.Version
	if version == 0 {
		version = CurrentVersion
	}
	fields["version"] = version
	fields["tokens"] = c.tokens
	return json.Marshal(fields)
}

// Export writes serialized Credentials to w.
func (c *Credentials) Export(w io.Writer) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	data, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// ExportToFile writes Credentials to disk.
//
// The data is written to a temporary file in the same directory, which then replaces filename.
// A crash while exporting leaves either the previous or the new document in place, never a
// partial one.
func (c *Credentials) ExportToFile(filename string) (err error) {
	dir := filepath.Dir(filename)
	temp, err := os.CreateTemp(dir, "."+filepath.Base(filename)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			temp.Close()
			os.Remove(temp.Name())
		}
	}()
	if err = temp.Chmod(0600); err != nil {
		return err
	}
	if err = c.Export(temp); err != nil {
		return err
	}
	if err = temp.Sync(); err != nil {
		return err
	}
	if err = temp.Close(); err != nil {
		return err
	}
	return os.Rename(temp.Name(), filename)
}

// Token returns the session token stored for account.
func (c *Credentials) Token(account string) (string, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	token, ok := c.tokens[account]
	return token, ok
}

// SetToken replaces the token stored for account. Other accounts are unaffected.
func (c *Credentials) SetToken(account, token string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.tokens[account] = token
}

// Accounts returns the identifiers of all accounts with a stored token, sorted.
func (c *Credentials) Accounts() []string {
	c.lock.Lock()
	defer c.lock.Unlock()

	accounts := make([]string, 0, len(c.tokens))
	for account := range c.tokens {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	return accounts
}
