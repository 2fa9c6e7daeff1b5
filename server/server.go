package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/polyana-labs/concierge/internal/models"
	"github.com/polyana-labs/concierge/pkg/category"
	"github.com/polyana-labs/concierge/pkg/pricing"
	"github.com/polyana-labs/concierge/pkg/retriever"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

type Config struct {
	Port string
	TopK int
}

// Server exposes retrieval and pricing over HTTP and WebSocket.
type Server struct {
	config   Config
	engine   *retriever.Engine
	resolver *pricing.Resolver
}

func New(engine *retriever.Engine, resolver *pricing.Resolver, config Config) *Server {
	if config.Port == "" {
		config.Port = "8080"
	}
	if config.TopK < 1 {
		config.TopK = 4
	}
	return &Server{config: config, engine: engine, resolver: resolver}
}

type SearchRequest struct {
	Query    string `json:"query"`
	K        int    `json:"k,omitempty"`
	Category string `json:"category,omitempty"`
}

type SearchResponse struct {
	Category string      `json:"category,omitempty"`
	Chunks   []ChunkView `json:"chunks"`
	Context  string      `json:"context"`
}

type ChunkView struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Category string `json:"category"`
	Text     string `json:"text"`
}

type PriceRequest struct {
	Resort string `json:"resort"`
	Item   string `json:"item"`
	Date   string `json:"date,omitempty"`
	Age    string `json:"age,omitempty"`
	Days   int    `json:"days,omitempty"`
}

type PriceResponse struct {
	Amount   int    `json:"amount"`
	Currency string `json:"currency"`
	PerDay   int    `json:"per_day,omitempty"`
	Days     int    `json:"days"`
	Season   string `json:"season,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler builds the route table. Split out from Run so tests can drive the
// server through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/search", s.handleSearch)
	mux.HandleFunc("/price", s.handlePrice)
	mux.HandleFunc("/rebuild", s.handleRebuild)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.config.Port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Listening on port %s", s.config.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.engine.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":     s.engine.State().String(),
		"documents": stats.Documents,
		"chunks":    stats.Chunks,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{"POST only"})
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{fmt.Sprintf("invalid request: %v", err)})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{"query is required"})
		return
	}

	k := req.K
	if k < 1 {
		k = s.config.TopK
	}

	// An explicit category wins over detection from the query text.
	var cat models.Category
	if req.Category != "" {
		parsed, err := models.ParseCategory(req.Category)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})
			return
		}
		cat = parsed
	} else if detected, ok := category.Detect(req.Query); ok {
		cat = detected
	}

	chunks, err := s.engine.Search(r.Context(), req.Query, k, cat)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Category: string(cat),
		Chunks:   chunkViews(chunks),
		Context:  retriever.AssembleContext(chunks),
	})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{"POST only"})
		return
	}

	var req PriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{fmt.Sprintf("invalid request: %v", err)})
		return
	}

	request, err := buildPriceRequest(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})
		return
	}

	quote, ok := s.resolver.Resolve(request)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{"no tariff matches the request"})
		return
	}
	writeJSON(w, http.StatusOK, quoteView(quote))
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{"POST only"})
		return
	}

	if err := s.engine.Rebuild(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{err.Error()})
		return
	}
	stats := s.engine.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents": stats.Documents,
		"chunks":    stats.Chunks,
	})
}

type wsMessage struct {
	Type    string      `json:"type"`
	Content string      `json:"content,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendMessage(conn, wsMessage{Type: "error", Content: "invalid message"})
			continue
		}

		switch msg.Type {
		case "search":
			s.wsSearch(r.Context(), conn, msg.Content)
		case "price":
			s.wsPrice(conn, msg)
		default:
			s.sendMessage(conn, wsMessage{Type: "error", Content: fmt.Sprintf("unknown message type %q", msg.Type)})
		}
	}
}

// wsSearch streams chunks one by one, then the assembled context.
func (s *Server) wsSearch(ctx context.Context, conn *websocket.Conn, query string) {
	var cat models.Category
	if detected, ok := category.Detect(query); ok {
		cat = detected
	}

	chunks, err := s.engine.Search(ctx, query, s.config.TopK, cat)
	if err != nil {
		s.sendMessage(conn, wsMessage{Type: "error", Content: err.Error()})
		return
	}

	for _, view := range chunkViews(chunks) {
		s.sendMessage(conn, wsMessage{Type: "chunk", Data: view})
	}
	s.sendMessage(conn, wsMessage{Type: "context", Content: retriever.AssembleContext(chunks)})
}

func (s *Server) wsPrice(conn *websocket.Conn, msg wsMessage) {
	raw, err := json.Marshal(msg.Data)
	if err != nil {
		s.sendMessage(conn, wsMessage{Type: "error", Content: "invalid price payload"})
		return
	}
	var req PriceRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.sendMessage(conn, wsMessage{Type: "error", Content: "invalid price payload"})
		return
	}

	request, err := buildPriceRequest(req)
	if err != nil {
		s.sendMessage(conn, wsMessage{Type: "error", Content: err.Error()})
		return
	}

	quote, ok := s.resolver.Resolve(request)
	if !ok {
		s.sendMessage(conn, wsMessage{Type: "not_found", Content: "no tariff matches the request"})
		return
	}
	s.sendMessage(conn, wsMessage{Type: "quote", Data: quoteView(quote)})
}

func (s *Server) sendMessage(conn *websocket.Conn, msg wsMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func buildPriceRequest(req PriceRequest) (pricing.Request, error) {
	if req.Resort == "" || req.Item == "" {
		return pricing.Request{}, fmt.Errorf("resort and item are required")
	}

	request := pricing.Request{
		Resort: req.Resort,
		Item:   req.Item,
		Age:    pricing.AgeAdult,
		Days:   req.Days,
	}
	if req.Date != "" {
		date, err := pricing.ParseDate(req.Date)
		if err != nil {
			return pricing.Request{}, err
		}
		request.Date = date
	}
	if req.Age != "" {
		switch pricing.AgeCategory(req.Age) {
		case pricing.AgeAdult, pricing.AgeYouth, pricing.AgeChild:
			request.Age = pricing.AgeCategory(req.Age)
		default:
			return pricing.Request{}, fmt.Errorf("unknown age category %q", req.Age)
		}
	}
	return request, nil
}

func chunkViews(chunks []models.Chunk) []ChunkView {
	views := make([]ChunkView, 0, len(chunks))
	for _, c := range chunks {
		views = append(views, ChunkView{
			ID:       c.ChunkID,
			Source:   c.SourceID,
			Category: string(c.Category),
			Text:     c.Text,
		})
	}
	return views
}

func quoteView(quote pricing.Quote) PriceResponse {
	return PriceResponse{
		Amount:   quote.Amount,
		Currency: quote.Currency,
		PerDay:   quote.PerDay,
		Days:     quote.Days,
		Season:   string(quote.Rule.Season),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
