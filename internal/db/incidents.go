package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ghatsafe/ghatsafe/internal/dataset"
	"github.com/ghatsafe/ghatsafe/internal/severity"
)

// Incident is an accident reported through the API. Incidents feed the
// dashboard alongside the historical dataset.
type Incident struct {
	ID         string        `db:"id" json:"id"`
	Location   string        `db:"location" json:"location"`
	Time       string        `db:"time_of_day" json:"time"`
	Weather    string        `db:"weather" json:"weather"`
	Road       string        `db:"road" json:"road"`
	Vehicles   int           `db:"vehicles" json:"vehicles"`
	Casualties int           `db:"casualties" json:"casualties"`
	Severity   severity.Tier `db:"severity" json:"severity"`
	Cause      string        `db:"cause" json:"cause,omitempty"`
	Notes      string        `db:"notes" json:"notes,omitempty"`
	ReportedBy *int64        `db:"reported_by" json:"reported_by,omitempty"`
	CreatedAt  int64         `db:"created_at" json:"created_at"`
}

// IncidentError reports an incident field that cannot be stored.
type IncidentError struct {
	Field  string
	Reason string
}

func (e *IncidentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (in *Incident) normalize() error {
	in.Location = strings.TrimSpace(in.Location)
	in.Time = strings.TrimSpace(in.Time)
	in.Weather = strings.TrimSpace(in.Weather)
	in.Road = strings.TrimSpace(in.Road)
	in.Cause = strings.TrimSpace(in.Cause)
	switch {
	case in.Location == "":
		return &IncidentError{Field: "location", Reason: "required"}
	case in.Vehicles < 1:
		return &IncidentError{Field: "vehicles", Reason: "must be at least 1"}
	case in.Casualties < 0:
		return &IncidentError{Field: "casualties", Reason: "must not be negative"}
	}
	return nil
}

// CreateIncident stores in, assigning its id, severity tier and timestamp.
func (db *DB) CreateIncident(in Incident) (*Incident, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	in.ID = uuid.NewString()
	in.Severity = severity.Bucketize(in.Casualties).Tier
	in.CreatedAt = db.clock.Now().Unix()
	_, err := db.NamedExec(`
		INSERT INTO incidents (id, location, time_of_day, weather, road, vehicles, casualties,
			severity, cause, notes, reported_by, created_at)
		VALUES (:id, :location, :time_of_day, :weather, :road, :vehicles, :casualties,
			:severity, :cause, :notes, :reported_by, :created_at)`, &in)
	if err != nil {
		return nil, fmt.Errorf("insert incident: %w", err)
	}
	return &in, nil
}

// GetIncident returns the incident with id.
func (db *DB) GetIncident(id string) (*Incident, error) {
	var in Incident
	err := db.Get(&in, "SELECT * FROM incidents WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// IncidentFilter narrows ListIncidents. Zero values match everything.
type IncidentFilter struct {
	Location string
	Severity severity.Tier
	Limit    int
}

// ListIncidents returns incidents newest first.
func (db *DB) ListIncidents(f IncidentFilter) ([]Incident, error) {
	query := "SELECT * FROM incidents WHERE 1=1"
	var args []interface{}
	if f.Location != "" {
		query += " AND location = ? COLLATE NOCASE"
		args = append(args, strings.TrimSpace(f.Location))
	}
	if f.Severity != "" {
		query += " AND severity = ?"
		args = append(args, f.Severity)
	}
	query += " ORDER BY created_at DESC, id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	incidents := []Incident{}
	if err := db.Select(&incidents, query, args...); err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	return incidents, nil
}

// DeleteIncident removes the incident with id.
func (db *DB) DeleteIncident(id string) error {
	res, err := db.Exec("DELETE FROM incidents WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncidentRecords returns every stored incident as a dataset record.
func (db *DB) IncidentRecords() ([]dataset.Record, error) {
	incidents, err := db.ListIncidents(IncidentFilter{})
	if err != nil {
		return nil, err
	}
	records := make([]dataset.Record, len(incidents))
	for i, in := range incidents {
		records[i] = dataset.Record{
			Location:   in.Location,
			Time:       in.Time,
			Weather:    in.Weather,
			Road:       in.Road,
			Vehicles:   in.Vehicles,
			Casualties: in.Casualties,
			Cause:      in.Cause,
		}
	}
	return records, nil
}
