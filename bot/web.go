// © 2024 the Pounce Authors under the WTFPL. See AUTHORS for the list of authors.

package bot

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"
)

var rootIndex = `
<!DOCTYPE html>
<html>
	<head>
		<title>pounce</title>
		<meta name="viewport" content="width=device-width, initial-scale=1">
	</head>
	{{if .EndPoints}}
	<div style="padding-top: 1em;">
		<table>
			<thead>
				<tr>
					<th>Plugin</th>
				</tr>
			</thead>
			<tbody>
				{{range .EndPoints}}
				<tr>
					<td><a href="{{.URL}}">{{.Name}}</a></td>
				</tr>
				{{end}}
			</tbody>
		</table>
	</div>
	{{end}}
</html>
`

func (b *bot) serveRoot(w http.ResponseWriter, r *http.Request) {
	context := map[string]any{"EndPoints": b.GetWebNavigation()}
	t, err := template.New("rootIndex").Parse(rootIndex)
	if err != nil {
		log.Error().Err(err).Msg("could not parse root template")
		w.WriteHeader(500)
		return
	}
	t.Execute(w, context)
}

func (b *bot) serveNav(w http.ResponseWriter, r *http.Request) {
	enc := json.NewEncoder(w)
	err := enc.Encode(b.GetWebNavigation())
	if err != nil {
		jsonErr, _ := json.Marshal(err)
		w.WriteHeader(500)
		w.Write(jsonErr)
	}
}

// GetWebNavigation returns the registered plugin endpoints plus any
// extra links from config
func (b *bot) GetWebNavigation() []EndPoint {
	endpoints := b.httpEndPoints
	moreEndpoints := b.config.GetArray("bot.links", []string{})
	for _, e := range moreEndpoints {
		link := splitLink(e)
		if link == nil {
			continue
		}
		endpoints = append(endpoints, *link)
	}
	return endpoints
}

func splitLink(e string) *EndPoint {
	for i := 0; i < len(e); i++ {
		if e[i] == ':' {
			return &EndPoint{e[:i], e[i+1:]}
		}
	}
	return nil
}
