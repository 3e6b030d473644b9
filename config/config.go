// © 2024 the Pounce Authors under the WTFPL. See AUTHORS for the list of authors.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// arraySep separates entries of array values in the backing store
const arraySep = ";;"

// Config stores any system-wide startup information that cannot be easily
// configured via the database
type Config struct {
	DBFile string

	db *sqlx.DB
}

// DB returns the database handle the config (and the rest of the bot)
// lives on
func (c *Config) DB() *sqlx.DB {
	return c.db
}

// GetFloat64 returns the config value for a string key
// It will first look in the env vars for the key
// It will check the DB for the key if an env DNE
// Finally, it will return a zero value if the key does not exist
// It will attempt to convert the value to a float64 if it exists
func (c *Config) GetFloat64(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(c.GetString(key, fmt.Sprintf("%f", fallback)), 64)
	if err != nil {
		return 0.0
	}
	return f
}

// GetInt64 returns the config value for a string key
// It will first look in the env vars for the key
// It will check the DB for the key if an env DNE
// Finally, it will return a zero value if the key does not exist
// It will attempt to convert the value to an int64 if it exists
func (c *Config) GetInt64(key string, fallback int64) int64 {
	i, err := strconv.ParseInt(c.GetString(key, strconv.FormatInt(fallback, 10)), 10, 64)
	if err != nil {
		return 0
	}
	return i
}

// GetInt returns the config value for a string key
// It will first look in the env vars for the key
// It will check the DB for the key if an env DNE
// Finally, it will return a zero value if the key does not exist
// It will attempt to convert the value to an int if it exists
func (c *Config) GetInt(key string, fallback int) int {
	i, err := strconv.Atoi(c.GetString(key, strconv.Itoa(fallback)))
	if err != nil {
		return 0
	}
	return i
}

// Get is a shortcut for GetString
func (c *Config) Get(key, fallback string) string {
	return c.GetString(key, fallback)
}

func envkey(key string) string {
	key = strings.ToUpper(key)
	key = strings.ReplaceAll(key, ".", "")
	return key
}

// GetString returns the config value for a string key
// It will first look in the env vars for the key
// It will check the DB for the key if an env DNE
// Finally, it will return a zero value if the key does not exist
func (c *Config) GetString(key, fallback string) string {
	key = strings.ToLower(key)
	if v, found := os.LookupEnv(envkey(key)); found {
		return v
	}
	var configValue string
	q := `select value from config where key=?`
	err := c.db.Get(&configValue, q, key)
	if err != nil {
		log.Debug().Msgf("WARN: Key %s is empty", key)
		return fallback
	}
	return configValue
}

// GetArray returns the string slice config value for a string key
// It delegates to GetString, then splits on the array separator
func (c *Config) GetArray(key string, fallback []string) []string {
	val := c.GetString(key, "")
	if val == "" {
		return fallback
	}
	return strings.Split(val, arraySep)
}

// Unset removes config values from the database
func (c *Config) Unset(key string) error {
	q := `delete from config where key=?`
	tx, err := c.db.Beginx()
	if err != nil {
		return err
	}
	_, err = tx.Exec(q, key)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Set changes the value for a configuration in the database
// Note, this is always a string. Use the SetArray for an array helper
func (c *Config) Set(key, value string) error {
	key = strings.ToLower(key)
	value = strings.Trim(value, "`")
	q := `insert into config (key,value) values (?, ?)
			on conflict(key) do update set value=?;`
	tx, err := c.db.Beginx()
	if err != nil {
		return err
	}
	_, err = tx.Exec(q, key, value, value)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// SetArray stores a string slice config value joined on the array separator
func (c *Config) SetArray(key string, values []string) error {
	value := strings.Join(values, arraySep)
	return c.Set(key, value)
}

func (c *Config) mkDB() {
	c.db.MustExec(`create table if not exists config (
		key string,
		value string,
		primary key (key)
	);`)
}

// ReadConfig opens (creating if necessary) the key/value store all of the
// bot's configuration lives in
func ReadConfig(dbpath string) *Config {
	if dbpath == "" {
		dbpath = "pounce.db"
	}
	log.Info().Msgf("Using %s as database file.", dbpath)

	sqlDB, err := sqlx.Open("sqlite3", dbpath)
	if err != nil {
		log.Fatal().Err(err).Msg("could not open config database")
	}
	if dbpath == ":memory:" {
		// a second pooled connection would see a different empty database
		sqlDB.SetMaxOpenConns(1)
	}
	c := Config{
		DBFile: dbpath,
		db:     sqlDB,
	}
	c.mkDB()
	log.Info().Msgf("Configuration loaded.")
	return &c
}
