// Package google writes dashboards to a Google Sheets spreadsheet, one tab
// per owner.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"hisaab/internal/core"
	"hisaab/internal/log"
	"hisaab/internal/sheets"
)

// maxTitleLen is the longest tab title Sheets accepts.
const maxTitleLen = 100

type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

// Exporter implements sheets.DashboardWriter.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger

	mu   sync.Mutex
	tabs map[string]bool
}

var _ sheets.DashboardWriter = (*Exporter)(nil)

// New creates an exporter authenticated with the configured service
// account. When opts are given they replace the credential options.
func New(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Exporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Dashboard"
	}

	clientOpts := opts
	if len(opts) == 0 {
		creds, err := credentials(cfg)
		if err != nil {
			return nil, err
		}
		clientOpts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Exporter{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		logger:        logger.WithComponent(log.ComponentSheets),
		tabs:          make(map[string]bool),
	}, nil
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case cfg.CredentialsFile != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// TabName is the tab holding ownerID's dashboard.
func (e *Exporter) TabName(ownerID string) string {
	name := e.sheetName + " " + ownerID
	if len(name) > maxTitleLen {
		name = name[:maxTitleLen]
	}
	return name
}

// WriteDashboard replaces the owner's tab with the dashboard rows, creating
// the tab on first use.
func (e *Exporter) WriteDashboard(ctx context.Context, d core.Dashboard) error {
	if d.OwnerID == "" {
		return errors.New("dashboard has no owner")
	}
	tab := e.TabName(d.OwnerID)
	if err := e.ensureTab(ctx, tab); err != nil {
		return err
	}

	rng := quoteTab(tab)
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", tab, err)
	}

	rows := sheets.Rows(d)
	vr := &gsheet.ValueRange{Values: rows}
	if _, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, rng+"!A1", vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", tab, err)
	}

	e.logger.DebugContext(ctx, "Dashboard exported",
		log.FieldOwnerID, d.OwnerID,
		"tab", tab,
		"rows", len(rows))
	return nil
}

func (e *Exporter) ensureTab(ctx context.Context, tab string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tabs[tab] {
		return nil
	}

	ss, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			e.tabs[s.Properties.Title] = true
		}
	}
	if e.tabs[tab] {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: tab},
			},
		}},
	}
	if _, err := e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add tab %s: %w", tab, err)
	}
	e.tabs[tab] = true
	e.logger.InfoContext(ctx, "Created dashboard tab", "tab", tab)
	return nil
}

// quoteTab quotes a tab title for use in A1 notation.
func quoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}
