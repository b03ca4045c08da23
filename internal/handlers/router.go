package handlers

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"
)

// LivenessMessage is the body of GET /.
const LivenessMessage = "pdf analyser is running"

func Liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, LivenessMessage)
}

// NewRouter mounts the endpoints behind recovery and request logging.
func NewRouter(analyse http.Handler) *negroni.Negroni {
	r := mux.NewRouter()
	r.Handle("/analyse", analyse).Methods(http.MethodPost)
	r.HandleFunc("/", Liveness).Methods(http.MethodGet)

	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.Use(negroni.NewLogger())
	n.UseHandler(r)
	return n
}
