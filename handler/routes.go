package handler

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter регистрирует все маршруты сервиса
func NewRouter(api *APIHandler, ws *WSHandler) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/ws", ws.HandleWebSocket).Methods(http.MethodGet)
	router.HandleFunc("/health", api.Health).Methods(http.MethodGet)

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/games", api.ListGames).Methods(http.MethodGet)
	v1.HandleFunc("/stats", api.GetStats).Methods(http.MethodGet)
	v1.HandleFunc("/results/{room_id}", api.GetResult).Methods(http.MethodGet)
	v1.HandleFunc("/players/{user_id}/results", api.GetPlayerResults).Methods(http.MethodGet)

	return router
}
