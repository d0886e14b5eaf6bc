package app

import (
	"database/sql"
	"log"
	"time"

	"dealdesk/internal/config"
	"dealdesk/internal/db"
	"dealdesk/internal/engine"
	"dealdesk/internal/migrate"
	"dealdesk/internal/notify"
	"dealdesk/internal/repo"
)

// Env bundles the wired engine with the resources it borrows. Close releases
// the database handle.
type Env struct {
	Engine engine.Engine
	Config *config.Config
	DB     *sql.DB
}

func (e Env) Close() error {
	if e.DB != nil {
		return e.DB.Close()
	}
	return nil
}

// Open resolves the workspace: loads config, opens and migrates the SQLite
// store, and builds an engine on top of it.
func Open(workspace string, logger *log.Logger) (Env, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return Env{}, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return Env{}, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return Env{}, err
	}
	eng := engine.New(repo.Repo{DB: conn})
	eng.Logger = logger
	eng.Now = time.Now
	if cfg.Notifications.Enabled {
		eng.Notifier = notify.LogNotifier{Logger: logger}
	} else {
		eng.Notifier = notify.Noop{}
	}
	return Env{Engine: eng, Config: cfg, DB: conn}, nil
}
