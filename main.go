// © 2024 the Pounce Authors under the WTFPL. See AUTHORS for the list of authors.

package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pouncebot/pounce/bot"
	"github.com/pouncebot/pounce/config"
	"github.com/pouncebot/pounce/connectors/cli"
	"github.com/pouncebot/pounce/connectors/discord"
	"github.com/pouncebot/pounce/plugins/admin"
	"github.com/pouncebot/pounce/plugins/retrigger"
)

var (
	dbpath     = flag.String("db", "pounce.db", "Database file to load")
	prettyLogs = flag.Bool("pretty", true, "Use pretty console logs")
	debug      = flag.Bool("debug", false, "Turn on debug logging")
)

func main() {
	flag.Parse()

	if *prettyLogs {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	c := config.ReadConfig(*dbpath)

	var client bot.Connector
	if token := c.Get("discord.token", ""); token != "" {
		client = discord.New(c)
	} else {
		log.Info().Msg("no discord token configured, starting the terminal connector")
		client = cli.New(c)
	}

	b := bot.New(c, client)

	b.AddPlugin(admin.New(b))
	// registered last so its catch-all dispatch sees whatever no command
	// handler consumed
	b.AddPlugin(retrigger.New(b))

	go func() {
		if err := client.Serve(); err != nil {
			log.Fatal().Err(err).Msg("could not connect")
		}
	}()
	b.ListenAndServe()
}
