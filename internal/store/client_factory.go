// internal/store/client_factory.go
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	_ "modernc.org/sqlite"

	"whatsapp-campaigns/internal/services"
	"whatsapp-campaigns/pkg/logger"
)

const (
	sessionDirPrefix = "session-"
	storeFileName    = "whatsmeow.db"
)

// ClientFactory creates whatsmeow clients, each backed by its own sqlite file
type ClientFactory struct {
	baseDir string
	logger  *logger.Logger
}

// NewClientFactory creates a factory storing artifacts below baseDir
func NewClientFactory(baseDir string, log *logger.Logger) (*ClientFactory, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create auth directory: %w", err)
	}

	return &ClientFactory{
		baseDir: baseDir,
		logger:  log,
	}, nil
}

// SessionDir returns the artifact directory of one session
func (f *ClientFactory) SessionDir(sessionID string) string {
	return filepath.Join(f.baseDir, sessionDirPrefix+sessionID)
}

// NewClient implements services.ClientFactory
func (f *ClientFactory) NewClient(ctx context.Context, sessionID string, sink services.EventSink) (services.Client, error) {
	if err := services.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	dir := f.SessionDir(sessionID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", filepath.Join(dir, storeFileName))
	container, err := sqlstore.New(ctx, "sqlite", dsn, f.logger.WhatsApp("Database/"+sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to open device store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("failed to load device: %w", err)
	}

	cli := whatsmeow.NewClient(device, f.logger.WhatsApp("Client/"+sessionID))
	// Recovery is driven by the session manager
	cli.EnableAutoReconnect = false

	client := newClient(sessionID, cli, container, sink, f.logger.With("session_id", sessionID))
	cli.AddEventHandler(client.handleEvent)

	return client, nil
}

// RemoveArtifacts implements services.ClientFactory
func (f *ClientFactory) RemoveArtifacts(sessionID string) error {
	if err := services.ValidateSessionID(sessionID); err != nil {
		return err
	}

	if err := os.RemoveAll(f.SessionDir(sessionID)); err != nil {
		return fmt.Errorf("failed to remove session directory: %w", err)
	}
	f.logger.Info("Removed authentication artifacts of session %s", sessionID)
	return nil
}

// StoredSessions implements services.ClientFactory
func (f *ClientFactory) StoredSessions() ([]string, error) {
	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read auth directory: %w", err)
	}

	var sessionIDs []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), sessionDirPrefix) {
			continue
		}

		sessionID := strings.TrimPrefix(entry.Name(), sessionDirPrefix)
		if services.ValidateSessionID(sessionID) != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(f.baseDir, entry.Name(), storeFileName)); err != nil {
			continue
		}
		sessionIDs = append(sessionIDs, sessionID)
	}

	sort.Strings(sessionIDs)
	return sessionIDs, nil
}
