package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	apperrors "github.com/jrsteele09/campus-portal/internal/errors"
)

// DefaultFileName is the credentials file created inside the data folder.
const DefaultFileName = "credentials.json"

// FileRepo keeps the pair in a JSON file, optionally encrypted with a
// passphrase. Writes go through a temp file and a rename so a reader never
// sees half a pair.
type FileRepo struct {
	path       string
	passphrase string
	mu         sync.Mutex
}

var _ Repo = (*FileRepo)(nil)

type FileRepoOption func(*FileRepo)

// WithPassphrase encrypts the file at rest. Existing plaintext files are
// still readable and are sealed on the next Save.
func WithPassphrase(passphrase string) FileRepoOption {
	return func(r *FileRepo) {
		r.passphrase = passphrase
	}
}

// NewFileRepo returns a repo backed by path. The parent directory is created
// on first Save.
func NewFileRepo(path string, options ...FileRepoOption) *FileRepo {
	r := &FileRepo{path: path}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Path returns the file the repo reads and writes.
func (r *FileRepo) Path() string {
	return r.path
}

func (r *FileRepo) Load(_ context.Context) (Pair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Pair{}, ErrNotFound
	}
	if err != nil {
		return Pair{}, fmt.Errorf("read credentials: %w", err)
	}

	pair, err := r.decode(data)
	if err != nil {
		return Pair{}, err
	}
	if !pair.Complete() {
		return Pair{}, ErrNotFound
	}
	return pair, nil
}

func (r *FileRepo) decode(data []byte) (Pair, error) {
	var probe struct {
		Version int `json:"v"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Pair{}, fmt.Errorf("parse credentials: %w", err)
	}

	if probe.Version == 0 {
		var pair Pair
		if err := json.Unmarshal(data, &pair); err != nil {
			return Pair{}, fmt.Errorf("parse credentials: %w", err)
		}
		return pair, nil
	}

	if r.passphrase == "" {
		return Pair{}, apperrors.ErrCredentialsSealed
	}
	var rec sealedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Pair{}, fmt.Errorf("parse sealed credentials: %w", err)
	}
	return open(r.passphrase, rec)
}

func (r *FileRepo) Save(_ context.Context, pair Pair) error {
	if err := validate(pair); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if r.passphrase != "" {
		data, err = seal(r.passphrase, pair)
	} else {
		data, err = json.MarshalIndent(pair, "", "  ")
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return writeFileAtomic(r.path, data)
}

func (r *FileRepo) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credentials folder: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace credentials: %w", err)
	}
	return nil
}
