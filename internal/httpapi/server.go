package httpapi

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	Router *mux.Router
}

func New() *Server {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	return &Server{Router: r}
}
