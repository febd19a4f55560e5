package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"coachhub/onboard/database"
	"coachhub/onboard/models"
	"coachhub/onboard/utils"
)

type AnalyticsStore struct {
	DB *database.ClickHouseClient
}

func NewAnalyticsStore(chClient *database.ClickHouseClient) *AnalyticsStore {
	return &AnalyticsStore{
		DB: chClient,
	}
}

func (s *AnalyticsStore) InsertScanEvents(ctx context.Context, events []models.ScanEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO scan_events (
			event_id, visitor_id, correlation_id, device, browser, pwa_installed,
			guide_shown, guide_completed, install_triggered, source, user_agent,
			ip_address, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for _, event := range events {
		err := batch.Append(
			event.EventID,
			event.VisitorID,
			event.CorrelationID,
			event.Device,
			event.Browser,
			event.PWAInstalled,
			event.GuideShown,
			event.GuideCompleted,
			event.InstallTriggered,
			event.Source,
			event.UserAgent,
			event.IPAddress,
			event.Timestamp,
		)
		if err != nil {
			log.Printf("Error appending scan event to batch (EventID: %s): %v", event.EventID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Printf("Inserted %d scan events.", len(events))
	return nil
}

func (s *AnalyticsStore) GetScanCountsOverTime(ctx context.Context, interval string, start, end time.Time, sourceFilter string) ([]models.ScanCountByTime, error) {
	if !utils.IsValidInterval(interval) {
		return nil, fmt.Errorf("invalid interval: %s", interval)
	}

	args := []interface{}{start, end}
	selectCols := fmt.Sprintf("toStartOf%s(timestamp) AS time_bucket, count() AS total", interval)
	groupByCols := "time_bucket"
	whereClause := "WHERE timestamp >= ? AND timestamp <= ?"
	orderByCols := "time_bucket ASC"
	filtering := sourceFilter != ""

	if filtering {
		selectCols += ", source"
		groupByCols += ", source"
		whereClause += " AND source = ?"
		args = append(args, sourceFilter)
		orderByCols += ", source ASC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM scan_events
		%s
		GROUP BY %s
		ORDER BY %s
	`, selectCols, whereClause, groupByCols, orderByCols)

	rows, err := s.DB.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan counts over time: %w", err)
	}
	defer rows.Close()

	var results []models.ScanCountByTime
	for rows.Next() {
		var (
			bucket time.Time
			count  uint64
			source string
			result models.ScanCountByTime
		)
		if filtering {
			if err := rows.Scan(&bucket, &count, &source); err != nil {
				log.Printf("Error scanning row for scan counts (with source filter): %v", err)
				continue
			}
			result.Source = &source
		} else {
			if err := rows.Scan(&bucket, &count); err != nil {
				log.Printf("Error scanning row for scan counts: %v", err)
				continue
			}
		}
		result.Time = bucket
		result.Count = count
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during scan counts query: %w", err)
	}
	return results, nil
}

// GetBreakdown counts landings per device or per browser.
func (s *AnalyticsStore) GetBreakdown(ctx context.Context, dimension string, start, end time.Time, limit uint64) ([]models.BreakdownResult, error) {
	if !utils.IsValidDimension(dimension) {
		return nil, fmt.Errorf("invalid dimension: %s", dimension)
	}
	if limit == 0 {
		limit = 10
	}

	query := fmt.Sprintf(`
		SELECT %s AS value, count() AS total
		FROM scan_events
		WHERE source IN (?, ?) AND timestamp >= ? AND timestamp <= ?
		GROUP BY value
		ORDER BY total DESC
		LIMIT ?
	`, dimension)

	rows, err := s.DB.Conn.Query(ctx, query, models.ScanSourceQR, models.ScanSourceDirect, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s breakdown: %w", dimension, err)
	}
	defer rows.Close()

	var results []models.BreakdownResult
	for rows.Next() {
		var r models.BreakdownResult
		if err := rows.Scan(&r.Value, &r.Count); err != nil {
			log.Printf("Error scanning row for %s breakdown: %v", dimension, err)
			continue
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for %s breakdown: %w", dimension, err)
	}
	return results, nil
}

// GetInstallFunnel counts landings and guide outcomes in one pass. Shell
// telemetry is left out.
func (s *AnalyticsStore) GetInstallFunnel(ctx context.Context, start, end time.Time) (models.InstallFunnel, error) {
	query := `
		SELECT
			countIf(source IN (?, ?)) AS scans,
			countIf(source = ? AND guide_shown) AS shown,
			countIf(source = ? AND install_triggered) AS triggered,
			countIf(source = ? AND guide_completed) AS completed,
			countIf(source IN (?, ?) AND pwa_installed) AS installed
		FROM scan_events
		WHERE timestamp >= ? AND timestamp <= ?
	`
	qr, direct, outcome := models.ScanSourceQR, models.ScanSourceDirect, models.ScanSourceOutcome

	var f models.InstallFunnel
	err := s.DB.Conn.QueryRow(ctx, query, qr, direct, outcome, outcome, outcome, qr, direct, start, end).Scan(
		&f.Scans,
		&f.GuideShown,
		&f.InstallTriggered,
		&f.GuideCompleted,
		&f.AlreadyInstalled,
	)
	if err != nil {
		return models.InstallFunnel{}, fmt.Errorf("failed to query install funnel: %w", err)
	}
	return f, nil
}
