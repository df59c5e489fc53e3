package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/example/sos-dispatch/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

const assignmentColumns = `id, requester_id, driver_id, hospital_id,
	requester_lat, requester_lng, driver_lat, driver_lng, hospital_lat, hospital_lng,
	requester_phone, driver_phone, billing_hold_id, status, created_at`

func (p *PostgresStore) Save(ctx context.Context, a *models.Assignment) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO assignments(`+assignmentColumns+`)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		a.ID, a.RequesterID, a.DriverID, a.HospitalID,
		a.RequesterLocation.Lat, a.RequesterLocation.Lng,
		a.DriverLocation.Lat, a.DriverLocation.Lng,
		a.HospitalLocation.Lat, a.HospitalLocation.Lng,
		a.RequesterPhone, a.DriverPhone, a.BillingHoldID, a.Status, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert assignment: %v", ErrPersistence, err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*models.Assignment, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE id=$1`, id)
	return scanAssignment(row)
}

func (p *PostgresStore) LatestActiveByRequester(ctx context.Context, requesterID string) (*models.Assignment, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM assignments
		WHERE requester_id=$1 AND status='active'
		ORDER BY created_at DESC, id DESC LIMIT 1`, requesterID)
	return scanAssignment(row)
}

func (p *PostgresStore) LatestActiveByDriver(ctx context.Context, driverID string) (*models.Assignment, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM assignments
		WHERE driver_id=$1 AND status='active'
		ORDER BY created_at DESC, id DESC LIMIT 1`, driverID)
	return scanAssignment(row)
}

func (p *PostgresStore) ActiveByHospital(ctx context.Context, hospitalID string) ([]*models.Assignment, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+assignmentColumns+` FROM assignments
		WHERE hospital_id=$1 AND status='active'
		ORDER BY created_at DESC, id ASC`, hospitalID)
	if err != nil {
		return nil, fmt.Errorf("%w: query roster: %v", ErrPersistence, err)
	}
	defer rows.Close()

	out := make([]*models.Assignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan roster: %v", ErrPersistence, err)
	}
	return out, nil
}

func (p *PostgresStore) UpdateDriverLocation(ctx context.Context, driverID string, c models.Coord) error {
	_, err := p.db.ExecContext(ctx, `UPDATE assignments
		SET driver_lat=$1, driver_lng=$2
		WHERE driver_id=$3 AND status='active'`, c.Lat, c.Lng, driverID)
	if err != nil {
		return fmt.Errorf("%w: patch driver location: %v", ErrPersistence, err)
	}
	return nil
}

func (p *PostgresStore) Resolve(ctx context.Context, id string) (*models.Assignment, error) {
	row := p.db.QueryRowContext(ctx, `UPDATE assignments SET status='resolved'
		WHERE id=$1 AND status='active'
		RETURNING `+assignmentColumns, id)
	a, err := scanAssignment(row)
	if errors.Is(err, ErrNotFound) {
		// disambiguate missing from already-resolved
		if _, getErr := p.Get(ctx, id); getErr == nil {
			return nil, ErrConflict
		}
		return nil, ErrNotFound
	}
	return a, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row rowScanner) (*models.Assignment, error) {
	var a models.Assignment
	err := row.Scan(&a.ID, &a.RequesterID, &a.DriverID, &a.HospitalID,
		&a.RequesterLocation.Lat, &a.RequesterLocation.Lng,
		&a.DriverLocation.Lat, &a.DriverLocation.Lng,
		&a.HospitalLocation.Lat, &a.HospitalLocation.Lng,
		&a.RequesterPhone, &a.DriverPhone, &a.BillingHoldID, &a.Status, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan assignment: %v", ErrPersistence, err)
	}
	return &a, nil
}
