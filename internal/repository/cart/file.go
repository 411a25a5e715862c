package cart

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"go.uber.org/zap"
	"storefront/internal/domain"
)

var ErrInvalidSession = errors.New("invalid session id")

var sessionPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// File stores each cart as <dir>/<session>.json.
type File struct {
	dir    string
	logger *zap.Logger
}

func NewFile(dir string, logger *zap.Logger) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cart dir: %w", err)
	}
	return &File{dir: dir, logger: orNop(logger)}, nil
}

func (f *File) path(sessionID string) (string, error) {
	if !sessionPattern.MatchString(sessionID) {
		return "", ErrInvalidSession
	}
	return filepath.Join(f.dir, sessionID+".json"), nil
}

func (f *File) Load(_ context.Context, sessionID string) ([]domain.LineItem, error) {
	p, err := f.path(sessionID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return []domain.LineItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	return decodeOrEmpty(f.logger, "file", sessionID, data), nil
}

// Save writes to a temp file and renames it over the old record.
func (f *File) Save(_ context.Context, sessionID string, items []domain.LineItem) error {
	p, err := f.path(sessionID)
	if err != nil {
		return err
	}
	data, err := encodeItems(items)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, sessionID+".*.tmp")
	if err != nil {
		return fmt.Errorf("write cart: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cart: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write cart: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write cart: %w", err)
	}
	return nil
}

func (f *File) Delete(_ context.Context, sessionID string) error {
	p, err := f.path(sessionID)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

// Ping checks that the cart directory is still reachable.
func (f *File) Ping(context.Context) error {
	_, err := os.Stat(f.dir)
	return err
}
