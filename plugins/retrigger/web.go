package retrigger

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

func (p *ReTriggerPlugin) registerWeb() {
	r := chi.NewRouter()
	r.Get("/api", p.handleAPI)
	p.b.RegisterWebName(r, "/retrigger", "Triggers")
}

// handleAPI serves the trigger documents for one guild as JSON
func (p *ReTriggerPlugin) handleAPI(w http.ResponseWriter, r *http.Request) {
	guild := r.URL.Query().Get("guild")
	if guild == "" {
		http.Error(w, "guild is required", http.StatusBadRequest)
		return
	}
	triggers, err := p.store.All(guild)
	if err != nil {
		log.Error().Err(err).Msg("could not load triggers")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	docs := []Doc{}
	for _, t := range triggers {
		docs = append(docs, t.ToDoc())
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(docs); err != nil {
		log.Error().Err(err).Msg("could not encode triggers")
	}
}
