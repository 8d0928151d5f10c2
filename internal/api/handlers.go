package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"skoll/internal/common"
	"skoll/internal/engine"
)

// Server is the HTTP gateway in front of the matching engine. It exists for
// scripted drivers and diagnostics; latency-sensitive flow belongs on the
// TCP surface.
type Server struct {
	engine *engine.Exchange
	router *mux.Router
}

func NewServer(eng *engine.Exchange) *Server {
	s := &Server{
		engine: eng,
		router: mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Router exposes the handler for mounting on an http.Server.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/{side}/{order_id}", s.handleCancelOrder).Methods("DELETE")
	api.HandleFunc("/orderbook/{instrument}", s.handleGetOrderBook).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// SubmitOrderRequest represents the JSON request body.
type SubmitOrderRequest struct {
	Instrument string `json:"instrument"`
	Side       string `json:"side"`
	Price      int64  `json:"price"`
	Quantity   uint32 `json:"quantity"`
}

// SubmitOrderResponse carries the id assigned to an accepted order.
type SubmitOrderResponse struct {
	OrderID uint64 `json:"order_id"`
}

// handleSubmitOrder handles POST /api/v1/orders.
func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Instrument == "" {
		respondError(w, http.StatusBadRequest, "instrument is required")
		return
	}
	side, err := common.ParseSide(req.Side)
	if err != nil {
		respondError(w, http.StatusBadRequest, "side must be BUY or SELL")
		return
	}

	id, err := s.engine.AddOrder(req.Instrument, side, req.Price, req.Quantity)
	if err != nil {
		if errors.Is(err, common.ErrInvalidPrice) || errors.Is(err, common.ErrInvalidQuantity) {
			respondError(w, http.StatusBadRequest, err.Error())
		} else {
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	log.Debug().
		Str("instrument", req.Instrument).
		Stringer("side", side).
		Uint64("order_id", id).
		Msg("order accepted")
	respondJSON(w, http.StatusCreated, SubmitOrderResponse{OrderID: id})
}

// handleCancelOrder handles DELETE /api/v1/orders/{side}/{order_id}.
// The instrument comes as a query parameter since order ids are scoped to
// instrument and side.
func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	side, err := common.ParseSide(vars["side"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "side must be BUY or SELL")
		return
	}
	orderID, err := strconv.ParseUint(vars["order_id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "order_id must be an unsigned integer")
		return
	}
	instrument := r.URL.Query().Get("instrument")
	if instrument == "" {
		respondError(w, http.StatusBadRequest, "instrument query parameter is required")
		return
	}

	if !s.engine.RemoveOrder(instrument, side, orderID) {
		respondError(w, http.StatusNotFound, common.ErrOrderNotFound.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"order_id": orderID,
		"status":   "CANCELLED",
	})
}

// OrderBookResponse is the flattened two-sided book, best levels first.
type OrderBookResponse struct {
	Instrument string         `json:"instrument"`
	Bid        *common.Quote  `json:"bid"`
	Ask        *common.Quote  `json:"ask"`
	Bids       []engine.Level `json:"bids"`
	Asks       []engine.Level `json:"asks"`
}

// handleGetOrderBook handles GET /api/v1/orderbook/{instrument}.
func (s *Server) handleGetOrderBook(w http.ResponseWriter, r *http.Request) {
	instrument := mux.Vars(r)["instrument"]

	bid, ask := s.engine.BestQuotes(instrument)
	respondJSON(w, http.StatusOK, OrderBookResponse{
		Instrument: instrument,
		Bid:        bid,
		Ask:        ask,
		Bids:       s.engine.Levels(instrument, common.Buy),
		Asks:       s.engine.Levels(instrument, common.Sell),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("unable to write response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
