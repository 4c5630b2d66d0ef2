// Package app wires the workspace database, stores and engine together for
// the CLI and the HTTP server.
package app

import (
	"database/sql"

	"hrflow/internal/config"
	"hrflow/internal/db"
	"hrflow/internal/domain"
	"hrflow/internal/engine"
	"hrflow/internal/events"
	"hrflow/internal/migrate"
	"hrflow/internal/store"
)

type App struct {
	DB     *sql.DB
	Config *config.Config
	Engine *engine.Engine
	Events *events.Writer
}

// Open loads workspace config, opens and migrates the SQLite database, and
// builds the engine over its tables.
func Open(workspace string) (*App, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	ev := &events.Writer{DB: conn}
	e := engine.New(
		&store.NameTable[domain.CustomerInfo]{DB: conn, Table: "customer_infos"},
		&store.IntTable[domain.Team]{DB: conn, Table: "teams", SetID: func(t *domain.Team, id int64) { t.ID = id }},
		&store.IntTable[domain.Vacancy]{DB: conn, Table: "vacancies", SetID: func(v *domain.Vacancy, id int64) { v.ID = id }},
		cfg,
	)
	e.Events = ev
	return &App{DB: conn, Config: cfg, Engine: e, Events: ev}, nil
}

func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
