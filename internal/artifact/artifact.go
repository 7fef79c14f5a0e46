// Package artifact renders ticket QR codes and stores them where buyers can
// fetch them.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
)

const qrSize = 512

var ErrInvalidName = errors.New("invalid artifact name")

// Store persists a rendered artifact and returns a URL for it.
type Store interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// Generator turns a ticket into a stored QR image.
type Generator struct {
	store Store
}

func NewGenerator(store Store) *Generator {
	return &Generator{store: store}
}

// Generate encodes the ticket's signed payload and stores it as
// tickets/<number>.png.
func (g *Generator) Generate(ctx context.Context, t domain.Ticket) (string, error) {
	if t.SignedPayload == "" {
		return "", domain.ErrInvalidTicketPayload
	}
	png, err := qrcode.Encode(t.SignedPayload, qrcode.High, qrSize)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return g.store.Put(ctx, "tickets/"+t.TicketNumber+".png", png)
}

// LocalStore writes artifacts below a base directory served at baseURL.
type LocalStore struct {
	basePath string
	baseURL  string
}

func NewLocalStore(basePath, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &LocalStore{basePath: basePath, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := sanitize(name)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.basePath, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return s.baseURL + "/" + clean, nil
}

func sanitize(name string) (string, error) {
	if name == "" || strings.Contains(name, "\\") {
		return "", ErrInvalidName
	}
	clean := path.Clean("/" + name)[1:]
	if clean == "" || clean != strings.TrimPrefix(name, "/") {
		return "", ErrInvalidName
	}
	return clean, nil
}
