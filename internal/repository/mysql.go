package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/olvesh/airsportslivetracking/internal/config"
	"github.com/olvesh/airsportslivetracking/internal/feed"
	"github.com/olvesh/airsportslivetracking/internal/metrics"
	"github.com/olvesh/airsportslivetracking/internal/models"
	"github.com/olvesh/airsportslivetracking/pkg/utils"
)

// MySQLRepository репозиторий справочных данных соревнования и истории позиций
type MySQLRepository struct {
	db     *sql.DB
	logger *utils.Logger
	config *config.MySQLConfig
}

// NewMySQLRepository создает новый MySQL репозиторий
func NewMySQLRepository(cfg *config.MySQLConfig, logger *utils.Logger) (*MySQLRepository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mysql config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mysql DSN is required")
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	// Настройки connection pool
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(1 * time.Hour)

	repo := &MySQLRepository{
		db:     db,
		logger: logger,
		config: cfg,
	}

	return repo, nil
}

// Ping проверяет соединение с MySQL
func (r *MySQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close закрывает соединение с MySQL
func (r *MySQLRepository) Close() error {
	return r.db.Close()
}

const competitorColumns = `
	c.id,
	c.task_id,
	COALESCE(c.name, '') as name,
	COALESCE(c.contest_number, '') as contest_number,
	COALESCE(c.tracker_devices, '') as tracker_devices,
	c.tracker_start_time,
	c.takeoff_time,
	c.finished_by_time,
	COALESCE(c.minutes_to_starting_point, 0) as minutes_to_starting_point,
	COALESCE(c.air_speed, 0) as air_speed,
	COALESCE(c.wind_speed, 0) as wind_speed,
	COALESCE(c.wind_direction, 0) as wind_direction,
	c.route_id,
	c.scorecard
`

// LoadCompetitors загружает участников, окно трекинга которых еще не закрыто
func (r *MySQLRepository) LoadCompetitors(ctx context.Context) ([]*models.Competitor, error) {
	start := time.Now()
	query := `
		SELECT ` + competitorColumns + `
		FROM competitor c
		WHERE c.finished_by_time > UTC_TIMESTAMP()
		ORDER BY c.id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		metrics.MySQLQueryErrors.WithLabelValues("load_competitors").Inc()
		return nil, fmt.Errorf("failed to query competitors: %w", err)
	}
	defer rows.Close()

	var competitors []*models.Competitor
	for rows.Next() {
		competitor, err := r.scanCompetitor(rows)
		if err != nil {
			r.logger.WithField("error", err).Warn("Failed to scan competitor row")
			continue
		}
		competitors = append(competitors, competitor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating competitor rows: %w", err)
	}

	metrics.MySQLQueryDuration.WithLabelValues("load_competitors").Observe(time.Since(start).Seconds())

	r.logger.WithField("count", len(competitors)).Debug("Loaded competitors from MySQL")
	return competitors, nil
}

// GetCompetitor загружает одного участника по ID
func (r *MySQLRepository) GetCompetitor(ctx context.Context, id int) (*models.Competitor, error) {
	query := `
		SELECT ` + competitorColumns + `
		FROM competitor c
		WHERE c.id = ?
	`

	row := r.db.QueryRowContext(ctx, query, id)
	competitor, err := r.scanCompetitor(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("competitor %d: %w", id, feed.ErrCompetitorNotFound)
	}
	if err != nil {
		metrics.MySQLQueryErrors.WithLabelValues("get_competitor").Inc()
		return nil, fmt.Errorf("failed to query competitor %d: %w", id, err)
	}
	return competitor, nil
}

// rowScanner покрывает *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *MySQLRepository) scanCompetitor(row rowScanner) (*models.Competitor, error) {
	var (
		competitor models.Competitor
		devices    string
	)

	err := row.Scan(
		&competitor.ID,
		&competitor.TaskID,
		&competitor.Name,
		&competitor.ContestNumber,
		&devices,
		&competitor.TrackerStartTime,
		&competitor.TakeoffTime,
		&competitor.FinishedByTime,
		&competitor.MinutesToStartingPoint,
		&competitor.AirSpeed,
		&competitor.WindSpeed,
		&competitor.WindDirection,
		&competitor.RouteID,
		&competitor.ScorecardName,
	)
	if err != nil {
		return nil, err
	}

	for _, device := range strings.Split(devices, ",") {
		device = strings.TrimSpace(device)
		if device != "" {
			competitor.TrackerDeviceIDs = append(competitor.TrackerDeviceIDs, device)
		}
	}

	return &competitor, nil
}

// LoadRoute загружает маршрут с путевыми точками и зонами
func (r *MySQLRepository) LoadRoute(ctx context.Context, routeID int) (*models.Route, error) {
	start := time.Now()

	route := &models.Route{ID: routeID}
	query := `
		SELECT
			COALESCE(name, '') as name,
			COALESCE(corridor_width, 0) as corridor_width,
			COALESCE(use_procedure_turns, 0) as use_procedure_turns
		FROM route
		WHERE id = ?
	`
	err := r.db.QueryRowContext(ctx, query, routeID).Scan(
		&route.Name,
		&route.CorridorWidth,
		&route.UseProcedureTurns,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("route %d not found", routeID)
	}
	if err != nil {
		metrics.MySQLQueryErrors.WithLabelValues("load_route").Inc()
		return nil, fmt.Errorf("failed to query route %d: %w", routeID, err)
	}

	if route.Waypoints, err = r.loadWaypoints(ctx, routeID); err != nil {
		return nil, err
	}
	if route.Zones, err = r.loadZones(ctx, routeID); err != nil {
		return nil, err
	}

	metrics.MySQLQueryDuration.WithLabelValues("load_route").Observe(time.Since(start).Seconds())

	r.logger.WithFields(map[string]interface{}{
		"route_id":  routeID,
		"waypoints": len(route.Waypoints),
		"zones":     len(route.Zones),
	}).Debug("Loaded route from MySQL")

	return route, nil
}

func (r *MySQLRepository) loadWaypoints(ctx context.Context, routeID int) ([]models.Waypoint, error) {
	query := `
		SELECT
			name,
			type,
			latitude,
			longitude,
			COALESCE(elevation, 0) as elevation,
			COALESCE(width, 0) as width,
			COALESCE(time_check, 0) as time_check,
			COALESCE(gate_check, 0) as gate_check,
			COALESCE(end_curved, 0) as end_curved
		FROM route_waypoint
		WHERE route_id = ?
		ORDER BY seq
	`

	rows, err := r.db.QueryContext(ctx, query, routeID)
	if err != nil {
		metrics.MySQLQueryErrors.WithLabelValues("load_route").Inc()
		return nil, fmt.Errorf("failed to query waypoints for route %d: %w", routeID, err)
	}
	defer rows.Close()

	var waypoints []models.Waypoint
	for rows.Next() {
		var wp models.Waypoint
		err := rows.Scan(
			&wp.Name, &wp.Type, &wp.Latitude, &wp.Longitude,
			&wp.Elevation, &wp.Width, &wp.TimeCheck, &wp.GateCheck, &wp.EndCurved,
		)
		if err != nil {
			r.logger.WithField("route_id", routeID).WithField("error", err).
				Warn("Failed to scan waypoint row")
			continue
		}
		waypoints = append(waypoints, wp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating waypoint rows: %w", err)
	}

	return waypoints, nil
}

func (r *MySQLRepository) loadZones(ctx context.Context, routeID int) ([]models.Zone, error) {
	query := `
		SELECT name, type, path
		FROM route_zone
		WHERE route_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, routeID)
	if err != nil {
		metrics.MySQLQueryErrors.WithLabelValues("load_route").Inc()
		return nil, fmt.Errorf("failed to query zones for route %d: %w", routeID, err)
	}
	defer rows.Close()

	var zones []models.Zone
	for rows.Next() {
		var (
			zone models.Zone
			path string
		)
		if err := rows.Scan(&zone.Name, &zone.Type, &path); err != nil {
			r.logger.WithField("route_id", routeID).WithField("error", err).
				Warn("Failed to scan zone row")
			continue
		}

		// Полигон храним как JSON массив пар [lat, lon]
		var pairs [][2]float64
		if err := json.Unmarshal([]byte(path), &pairs); err != nil {
			r.logger.WithField("route_id", routeID).WithField("zone", zone.Name).
				WithField("error", err).Warn("Failed to parse zone path")
			continue
		}
		for _, pair := range pairs {
			zone.Path = append(zone.Path, models.GeoPoint{Latitude: pair[0], Longitude: pair[1]})
		}

		zones = append(zones, zone)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating zone rows: %w", err)
	}

	return zones, nil
}

// GetPositionsForDevice возвращает позиции трекера в окне [from, to]
// в хронологическом порядке. Используется при старте расчета и для
// дозагрузки пропусков в живом потоке.
func (r *MySQLRepository) GetPositionsForDevice(ctx context.Context, deviceID string, from, to time.Time) ([]*models.Position, error) {
	start := time.Now()
	query := `
		SELECT
			device_id,
			stamp,
			latitude,
			longitude,
			COALESCE(altitude, 0) as altitude,
			COALESCE(speed, 0) as speed,
			COALESCE(course, 0) as course,
			COALESCE(battery, 0) as battery
		FROM device_position
		WHERE device_id = ? AND stamp >= ? AND stamp <= ?
		ORDER BY stamp
	`

	rows, err := r.db.QueryContext(ctx, query, deviceID, from.UTC(), to.UTC())
	if err != nil {
		metrics.MySQLQueryErrors.WithLabelValues("get_positions").Inc()
		return nil, fmt.Errorf("failed to query positions for device %s: %w", deviceID, err)
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		var position models.Position
		err := rows.Scan(
			&position.DeviceID,
			&position.Time,
			&position.Latitude,
			&position.Longitude,
			&position.Altitude,
			&position.Speed,
			&position.Course,
			&position.Battery,
		)
		if err != nil {
			r.logger.WithField("device_id", deviceID).WithField("error", err).
				Warn("Failed to scan position row")
			continue
		}
		position.Time = position.Time.UTC()
		positions = append(positions, &position)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}

	metrics.MySQLQueryDuration.WithLabelValues("get_positions").Observe(time.Since(start).Seconds())
	return positions, nil
}
