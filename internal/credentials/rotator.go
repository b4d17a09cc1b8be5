package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alvmarrod/index-weaver/internal/submit"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/indexing/v3"
	"google.golang.org/api/option"
)

// ErrExhausted signals that every configured service account has been used
// up to its quota. This is a terminal state for the run.
var ErrExhausted = errors.New("all service accounts exhausted")

// Account is an authorized handle for one credential source
type Account struct {
	Name      string
	Publisher submit.Publisher
}

// LoadFunc builds an authorized publisher from a service account key file
type LoadFunc func(ctx context.Context, keyFile string) (submit.Publisher, error)

// Rotator cycles through an ordered list of service account key files,
// advancing after a fixed quota of processed URLs. Sources are loaded
// lazily and loaded fresh on every advance.
type Rotator struct {
	keyFiles  []string
	quota     int
	load      LoadFunc
	index     int
	processed int
	active    *Account
}

// NewRotator creates a rotator over the given key files. A nil load
// function uses the Google Indexing API loader.
func NewRotator(keyFiles []string, quota int, load LoadFunc) *Rotator {
	if load == nil {
		load = loadIndexingService
	}
	return &Rotator{
		keyFiles: keyFiles,
		quota:    quota,
		load:     load,
	}
}

// AccountName derives the service account label from its key file path
func AccountName(keyFile string) string {
	return strings.TrimSuffix(filepath.Base(keyFile), ".json")
}

// Current returns the active account, loading it on first access. A load
// failure is fatal for the run; the rotator never skips ahead past a
// broken source.
func (r *Rotator) Current(ctx context.Context) (*Account, error) {
	if r.active != nil {
		return r.active, nil
	}
	return r.loadCurrent(ctx)
}

// MarkProcessed counts one URL against the active source's quota
func (r *Rotator) MarkProcessed() {
	r.processed++
}

// NeedsRotation reports whether the active source has reached its quota
func (r *Rotator) NeedsRotation() bool {
	return r.processed >= r.quota
}

// Advance moves to the next credential source, resetting the processed
// count. Returns ErrExhausted when no sources remain.
func (r *Rotator) Advance(ctx context.Context) (*Account, error) {
	r.index++
	if r.index >= len(r.keyFiles) {
		return nil, ErrExhausted
	}

	r.processed = 0
	r.active = nil

	acct, err := r.loadCurrent(ctx)
	if err != nil {
		return nil, err
	}

	logrus.Infof("Switched to service account: %s", acct.Name)
	return acct, nil
}

func (r *Rotator) loadCurrent(ctx context.Context) (*Account, error) {
	keyFile := r.keyFiles[r.index]

	pub, err := r.load(ctx, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials from %s: %w", keyFile, err)
	}

	logrus.Infof("Loaded credentials from %s", keyFile)
	r.active = &Account{
		Name:      AccountName(keyFile),
		Publisher: pub,
	}
	return r.active, nil
}

// loadIndexingService reads a service account key file and builds an
// authorized Indexing API client from it
func loadIndexingService(ctx context.Context, keyFile string) (submit.Publisher, error) {
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	conf, err := google.JWTConfigFromJSON(data, indexing.IndexingScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key material: %w", err)
	}

	svc, err := indexing.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to build indexing service: %w", err)
	}

	return submit.NewClient(svc), nil
}
