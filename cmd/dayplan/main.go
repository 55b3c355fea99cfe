// Dayplan is the calendar server: it owns the event store and exposes the
// JSON API the single-page client talks to, plus an iCal feed for external
// calendar apps.
package main

import (
	"context"
	"path/filepath"

	"github.com/caarlos0/env/v11"

	"github.com/dayplan-app/dayplan/engine"
	"github.com/dayplan-app/dayplan/engine/db"
	"github.com/dayplan-app/dayplan/modules/events"
	"github.com/dayplan-app/dayplan/modules/notifier"
)

type Config struct {
	HttpAddr string `envDefault:":8080"`
	Dir      string

	// SeedFile optionally points to a YAML fixture of events to import at startup.
	SeedFile string
}

func main() {
	conf, err := env.ParseAsWithOptions[Config](env.Options{Prefix: "DAYPLAN_", UseFieldNameByDefault: true})
	if err != nil {
		panic(err)
	}

	database, err := db.Open(filepath.Join(conf.Dir, "dayplan.sqlite3"))
	if err != nil {
		panic(err)
	}

	app := engine.NewApp(conf.HttpAddr)

	eventsModule := events.New(database)
	app.Add(eventsModule)
	app.Add(notifier.New(database, nil))

	if conf.SeedFile != "" {
		if err := eventsModule.ImportSeed(context.Background(), conf.SeedFile); err != nil {
			panic(err)
		}
	}

	app.Run(context.TODO())
}
