// Package debug collects sanitized diagnostics about the local installation:
// resolved paths, schema state, and the activity chain.
package debug

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/audit"
	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/storage"
)

type Check struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type StoreInfo struct {
	Path          string `json:"path"`
	SchemaVersion int    `json:"schema_version"`
	Tickets       int    `json:"tickets"`
}

type Bundle struct {
	GeneratedAt string         `json:"generated_at"`
	GOOS        string         `json:"goos"`
	GOARCH      string         `json:"goarch"`
	Version     map[string]any `json:"version,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
	Store       *StoreInfo     `json:"store,omitempty"`
	Checks      []Check        `json:"checks"`
}

func NewBundle(now time.Time) Bundle {
	return Bundle{
		GeneratedAt: now.UTC().Format(time.RFC3339Nano),
		GOOS:        runtime.GOOS,
		GOARCH:      runtime.GOARCH,
		Checks:      []Check{},
	}
}

// AddCheck records a passing check with okMessage when err is nil, and a
// failing one carrying err otherwise.
func (b *Bundle) AddCheck(name string, err error, okMessage string) {
	if err != nil {
		b.Checks = append(b.Checks, Check{Name: name, OK: false, Message: err.Error()})
		return
	}
	b.Checks = append(b.Checks, Check{Name: name, OK: true, Message: okMessage})
}

func (b Bundle) Healthy() bool {
	for _, check := range b.Checks {
		if !check.OK {
			return false
		}
	}
	return true
}

// InspectStore fills b.Store and appends the schema, tickets, and activity
// checks. It never fails; problems become failing checks.
func (b *Bundle) InspectStore(ctx context.Context, store *storage.Store, activity *audit.Service) {
	info := &StoreInfo{Path: store.Path()}
	b.Store = info

	version, err := storage.ReadSchemaVersion(store.DB())
	if err == nil && version != storage.CurrentSchemaVersion() {
		err = fmt.Errorf("schema version %d, want %d", version, storage.CurrentSchemaVersion())
	}
	info.SchemaVersion = version
	b.AddCheck("schema", err, fmt.Sprintf("version %d", version))

	count, err := store.Tickets.Count(ctx)
	info.Tickets = count
	b.AddCheck("tickets", err, fmt.Sprintf("%d stored", count))

	result, err := activity.Verify(ctx)
	if err == nil && !result.Valid {
		err = fmt.Errorf("activity chain invalid: %s", result.Error)
	}
	message := ""
	if result != nil {
		message = fmt.Sprintf("%d events verified", result.EventCount)
	}
	b.AddCheck("activity", err, message)
}

// CheckReportDir verifies that the directory for reportPath exists (or can
// be created) and accepts new files.
func (b *Bundle) CheckReportDir(reportPath string) {
	dir := filepath.Dir(reportPath)
	err := func() error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		probe, err := os.CreateTemp(dir, ".tickets-doctor-*")
		if err != nil {
			return err
		}
		name := probe.Name()
		_ = probe.Close()
		return os.Remove(name)
	}()
	b.AddCheck("report_dir", err, dir+" writable")
}

func WriteBundle(outputPath string, bundle Bundle) error {
	if outputPath == "" {
		return fmt.Errorf("write debug bundle: output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o700); err != nil {
		return fmt.Errorf("write debug bundle: create output directory: %w", err)
	}

	payload, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("write debug bundle: marshal json: %w", err)
	}
	if err := os.WriteFile(outputPath, payload, 0o600); err != nil {
		return fmt.Errorf("write debug bundle: %w", err)
	}
	return nil
}
