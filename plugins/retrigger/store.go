package retrigger

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// Store persists one JSON document per trigger, keyed by guild and name.
// It also hands out the per-(guild, name) locks that keep command-path
// mutation and dispatch-path bookkeeping from clobbering each other;
// different guilds never contend.
type Store struct {
	db     *sqlx.DB
	budget time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(db *sqlx.DB, budget time.Duration) *Store {
	db.MustExec(`create table if not exists triggers (
		guild string,
		name string,
		doc string,
		primary key (guild, name)
	);`)
	return &Store{
		db:     db,
		budget: budget,
		locks:  map[string]*sync.Mutex{},
	}
}

// Lock takes the single-writer lock for a trigger and returns its unlock
func (s *Store) Lock(guild, name string) func() {
	s.mu.Lock()
	key := guild + "\x00" + name
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// All returns every trigger in a guild ordered by name. Documents that no
// longer load (pattern rot, hand-edited docs) are skipped with a warning
// rather than poisoning the whole guild.
func (s *Store) All(guild string) ([]*Trigger, error) {
	docs := []string{}
	err := s.db.Select(&docs, `select doc from triggers where guild=? order by name`, guild)
	if err != nil {
		return nil, err
	}
	out := []*Trigger{}
	for _, doc := range docs {
		t, err := FromJSON([]byte(doc), s.budget)
		if err != nil {
			log.Warn().Err(err).Str("guild", guild).Msg("skipping unloadable trigger")
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Get returns a trigger by name, or nil when absent
func (s *Store) Get(guild, name string) (*Trigger, error) {
	var doc string
	err := s.db.Get(&doc, `select doc from triggers where guild=? and name=?`, guild, name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return FromJSON([]byte(doc), s.budget)
}

// Put upserts a trigger document
func (s *Store) Put(guild string, t *Trigger) error {
	doc, err := json.Marshal(t.ToDoc())
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`insert into triggers (guild, name, doc) values (?, ?, ?)
		on conflict(guild, name) do update set doc=excluded.doc`,
		guild, t.Name, string(doc))
	return err
}

// Delete removes a trigger by name
func (s *Store) Delete(guild, name string) error {
	_, err := s.db.Exec(`delete from triggers where guild=? and name=?`, guild, name)
	return err
}
