// cmd/server/server.go
package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/codr1/roombook/internal/api"
	"github.com/codr1/roombook/internal/api/apiutil"
	"github.com/codr1/roombook/internal/api/auth"
	"github.com/codr1/roombook/internal/api/reservations"
	"github.com/codr1/roombook/internal/api/rooms"
	"github.com/codr1/roombook/internal/api/teams"
	"github.com/codr1/roombook/internal/api/users"
	"github.com/codr1/roombook/internal/booking"
	"github.com/codr1/roombook/internal/config"
	"github.com/codr1/roombook/internal/db"
	"github.com/codr1/roombook/internal/ratelimit"
)

func newServer(cfg *config.Config, database *db.DB, service *booking.Service, tokenLimiter ratelimit.TokenLimiter) *http.Server {
	auth.InitHandlers(database.Queries, cfg, tokenLimiter)
	users.InitHandlers(database.Queries)
	teams.InitHandlers(database, service)
	rooms.InitHandlers(database.Queries, service)
	reservations.InitHandlers(database.Queries, service)

	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithAuth,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
	)

	// Register routes
	registerRoutes(router)

	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		_ = apiutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /v1/auth", auth.HandleTokenIssue)

	mux.HandleFunc("GET /v1/user/{id}", users.HandleUserGet)

	// Team routes
	mux.HandleFunc("POST /v1/team", teams.HandleTeamCreate)
	mux.HandleFunc("GET /v1/team/{id}", teams.HandleTeamGet)
	mux.HandleFunc("PUT /v1/team/{id}", teams.HandleTeamUpdate)
	mux.HandleFunc("DELETE /v1/team/{id}", teams.HandleTeamDelete)
	mux.HandleFunc("POST /v1/team_user/{id}", teams.HandleTeamMemberAdd)
	mux.HandleFunc("DELETE /v1/team_user/{id}", teams.HandleTeamMemberRemove)

	// Room routes
	mux.HandleFunc("POST /v1/room", rooms.HandleRoomCreate)
	mux.HandleFunc("GET /v1/rooms", rooms.HandleRoomList)
	mux.HandleFunc("GET /v1/room/{id}", rooms.HandleRoomGet)
	mux.HandleFunc("PUT /v1/room/{id}", rooms.HandleRoomUpdate)
	mux.HandleFunc("DELETE /v1/room/{id}", rooms.HandleRoomDelete)

	// Reservation routes
	mux.HandleFunc("POST /v1/reservation", reservations.HandleReservationCreate)
	mux.HandleFunc("GET /v1/reservations", reservations.HandleReservationsList)
	mux.HandleFunc("GET /v1/reservation/{id}", reservations.HandleReservationGet)
	mux.HandleFunc("PUT /v1/reservation/{id}", reservations.HandleReservationUpdate)
	mux.HandleFunc("DELETE /v1/reservation/{id}", reservations.HandleReservationDelete)
}
