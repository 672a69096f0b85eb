package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/speedtrap/internal/radar"
)

// ErrSiteNotFound is returned when no site matches a lookup.
var ErrSiteNotFound = errors.New("site not found")

// Site is one enforcement location and the limits it is signed for.
type Site struct {
	ID               int       `json:"id"`
	Name             string    `json:"name"`
	Location         string    `json:"location"`
	SensorDistanceMM int       `json:"sensor_distance_mm"`
	LightLimitKPH    int       `json:"light_limit_kph"`
	HeavyLimitKPH    int       `json:"heavy_limit_kph"`
	WarningPercent   int       `json:"warning_percent"`
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Limits returns the site's classifier limits.
func (s *Site) Limits() radar.Limits {
	return radar.Limits{
		DistanceMM:     uint32(s.SensorDistanceMM),
		LightLimitKPH:  uint32(s.LightLimitKPH),
		HeavyLimitKPH:  uint32(s.HeavyLimitKPH),
		WarningPercent: uint32(s.WarningPercent),
	}
}

// Site value bounds, matching the station config.
const (
	maxSensorDistanceMM = 1_000_000
	maxLimitKPH         = 1000
)

// Validate checks the fields a client supplies when creating or updating a
// site.
func (s *Site) Validate() error {
	switch {
	case strings.TrimSpace(s.Name) == "":
		return errors.New("name is required")
	case s.SensorDistanceMM < 1 || s.SensorDistanceMM > maxSensorDistanceMM:
		return fmt.Errorf("sensor_distance_mm must be between 1 and %d, got %d", maxSensorDistanceMM, s.SensorDistanceMM)
	case s.LightLimitKPH < 1 || s.LightLimitKPH > maxLimitKPH:
		return fmt.Errorf("light_limit_kph must be between 1 and %d, got %d", maxLimitKPH, s.LightLimitKPH)
	case s.HeavyLimitKPH < 1 || s.HeavyLimitKPH > maxLimitKPH:
		return fmt.Errorf("heavy_limit_kph must be between 1 and %d, got %d", maxLimitKPH, s.HeavyLimitKPH)
	case s.WarningPercent < 1 || s.WarningPercent > 100:
		return fmt.Errorf("warning_percent must be between 1 and 100, got %d", s.WarningPercent)
	}
	return nil
}

const siteColumns = `
	id, name, location, sensor_distance_mm, light_limit_kph,
	heavy_limit_kph, warning_percent, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (*Site, error) {
	var site Site
	var activeInt int
	var createdAtUnix, updatedAtUnix int64

	err := row.Scan(
		&site.ID,
		&site.Name,
		&site.Location,
		&site.SensorDistanceMM,
		&site.LightLimitKPH,
		&site.HeavyLimitKPH,
		&site.WarningPercent,
		&activeInt,
		&createdAtUnix,
		&updatedAtUnix,
	)
	if err != nil {
		return nil, err
	}
	site.Active = activeInt != 0
	site.CreatedAt = time.Unix(createdAtUnix, 0)
	site.UpdatedAt = time.Unix(updatedAtUnix, 0)
	return &site, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CreateSite creates a new site and sets site.ID.
func (db *DB) CreateSite(site *Site) error {
	if site.Active {
		return fmt.Errorf("failed to create site: use SetActiveSite to activate a site")
	}
	result, err := db.Exec(`
		INSERT INTO site (
			name, location, sensor_distance_mm, light_limit_kph,
			heavy_limit_kph, warning_percent
		) VALUES (?, ?, ?, ?, ?, ?)`,
		site.Name,
		site.Location,
		site.SensorDistanceMM,
		site.LightLimitKPH,
		site.HeavyLimitKPH,
		site.WarningPercent,
	)
	if err != nil {
		return fmt.Errorf("failed to create site: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	site.ID = int(id)
	return nil
}

// GetSite retrieves a site by ID.
func (db *DB) GetSite(id int) (*Site, error) {
	site, err := scanSite(db.QueryRow(`SELECT`+siteColumns+` FROM site WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSiteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site: %w", err)
	}
	return site, nil
}

// GetSiteByName retrieves a site by its unique name.
func (db *DB) GetSiteByName(name string) (*Site, error) {
	site, err := scanSite(db.QueryRow(`SELECT`+siteColumns+` FROM site WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSiteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site: %w", err)
	}
	return site, nil
}

// GetActiveSite returns the site the station runs with.
func (db *DB) GetActiveSite() (*Site, error) {
	site, err := scanSite(db.QueryRow(`SELECT` + siteColumns + ` FROM site WHERE active = 1 LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSiteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active site: %w", err)
	}
	return site, nil
}

// GetAllSites returns every site ordered by name.
func (db *DB) GetAllSites() ([]Site, error) {
	rows, err := db.Query(`SELECT` + siteColumns + ` FROM site ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer rows.Close()

	var sites []Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, *site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sites: %w", err)
	}
	return sites, nil
}

// UpdateSite updates a site's name, location and limits. The active flag is
// changed only through SetActiveSite.
func (db *DB) UpdateSite(site *Site) error {
	result, err := db.Exec(`
		UPDATE site SET
			name = ?, location = ?, sensor_distance_mm = ?, light_limit_kph = ?,
			heavy_limit_kph = ?, warning_percent = ?, updated_at = UNIXEPOCH()
		WHERE id = ?`,
		site.Name,
		site.Location,
		site.SensorDistanceMM,
		site.LightLimitKPH,
		site.HeavyLimitKPH,
		site.WarningPercent,
		site.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update site: %w", err)
	}
	return expectOneRow(result)
}

// SetActiveSite marks one site active and every other site inactive.
func (db *DB) SetActiveSite(id int) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`UPDATE site SET active = 1, updated_at = UNIXEPOCH() WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to activate site: %w", err)
	}
	if err := expectOneRow(result); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE site SET active = 0 WHERE id != ? AND active = 1`, id); err != nil {
		return fmt.Errorf("failed to deactivate sites: %w", err)
	}
	return tx.Commit()
}

// DeleteSite deletes a site by ID.
func (db *DB) DeleteSite(id int) error {
	result, err := db.Exec(`DELETE FROM site WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete site: %w", err)
	}
	return expectOneRow(result)
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrSiteNotFound
	}
	return nil
}
