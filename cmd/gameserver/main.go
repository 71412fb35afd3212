package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"pineapple-room-server/internal/auth"
	"pineapple-room-server/internal/events"
	"pineapple-room-server/internal/game"
	"pineapple-room-server/internal/hub"
	"pineapple-room-server/internal/registry"
	"pineapple-room-server/internal/scheduler"
	"pineapple-room-server/internal/storage"
	"pineapple-room-server/internal/storage/postgres"
	"pineapple-room-server/pkg/poker"
	"pineapple-room-server/pkg/rng"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO restrict to configured origins before production
	},
}

// Server bundles the constructed collaborators the HTTP handlers close over.
type Server struct {
	reg     *registry.Registry
	hub     *hub.Hub
	gate    *auth.Gate
	users   storage.UserStore
	history storage.HandHistoryStore
}

func main() {
	clock := game.RealClock()

	rngSys, err := rng.NewSystem(nil)
	if err != nil {
		log.Fatalf("failed to initialize RNG: %v", err)
	}
	evaluator := poker.NewHandEvaluator()

	store := buildSnapshotStore()
	reg := registry.New(clock, rngSys, evaluator, store)
	if metas, err := store.Load(); err != nil {
		log.Printf("main: failed to load room snapshots: %v", err)
	} else if len(metas) > 0 {
		log.Printf("main: found %d persisted room(s); live hand state is never restored (§9)", len(metas))
	}

	userStore := buildUserStore()
	history := buildHandHistoryStore()
	publisher := buildEventPublisher()

	h := hub.NewHub(reg, history, publisher)
	reg.SetExpiryNotifier(h.NotifyExpiry)

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-do-not-use-in-production"
		log.Printf("main: JWT_SECRET not set, using an insecure development default")
	}
	gate := auth.NewGate(secret, h.IsMember)

	srv := &Server{reg: reg, hub: h, gate: gate, users: userStore, history: history}

	sched := scheduler.New(reg, h.BroadcastToRoom)

	stop := make(chan struct{})
	go reg.RunReaper(stop)
	go reg.RunSnapshotter(stop)
	go sched.Run(stop)

	router := gin.Default()
	router.POST("/login", srv.handleLogin)
	router.GET("/game/:room_id", srv.handleWebSocket)
	router.POST("/rooms", srv.handleCreateRoom)
	router.GET("/rooms/:room_id", srv.handleGetRoom)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	httpSrv := &http.Server{
		Addr:    ":" + port(),
		Handler: router,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("main: shutting down")
		close(stop)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			log.Printf("main: shutdown error: %v", err)
		}
	}()

	log.Printf("main: game server listening on %s", httpSrv.Addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: server error: %v", err)
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// handleLogin verifies credentials against the external UserStore and mints
// a bearer token for the socket handshake (§6 "server validates token").
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ok, err := s.users.VerifyUser(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	token, err := s.gate.IssueToken(req.Username, 24*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// handleWebSocket authenticates and authorizes the caller for room_id, then
// hands the upgraded socket to the Hub (§4.5, §6, §7).
func (s *Server) handleWebSocket(c *gin.Context) {
	roomID := c.Param("room_id")
	token := c.Query("token")

	username, err := s.gate.AuthenticateAndAuthorize(token, roomID)
	if err != nil {
		conn, uerr := upgrader.Upgrade(c.Writer, c.Request, nil)
		if uerr != nil {
			return
		}
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()), time.Now().Add(time.Second))
		conn.Close()
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("main: upgrade error: %v", err)
		return
	}
	s.hub.Serve(conn, roomID, username)
}

type createRoomRequest struct {
	Name           string  `json:"name" binding:"required"`
	Owner          string  `json:"owner" binding:"required"`
	MaxPlayers     int     `json:"max_players"`
	SmallBlind     float64 `json:"small_blind"`
	BigBlind       float64 `json:"big_blind"`
	BuyInMin       float64 `json:"buy_in_min"`
	BuyInMax       float64 `json:"buy_in_max"`
	TurnSeconds    int     `json:"turn_seconds"`
	HandGapSeconds int     `json:"hand_gap_seconds"`
	IdleMinutes    int     `json:"idle_minutes"`
}

func (s *Server) handleCreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.TurnSeconds <= 0 {
		req.TurnSeconds = game.DefaultTurnSeconds
	}
	if req.HandGapSeconds <= 0 {
		req.HandGapSeconds = game.DefaultHandGapSeconds
	}
	idle := time.Duration(req.IdleMinutes) * time.Minute
	if idle <= 0 {
		idle = 30 * time.Minute
	}

	p := registry.Params{
		Name:           req.Name,
		Owner:          req.Owner,
		MaxPlayers:     req.MaxPlayers,
		SmallBlind:     decimal.NewFromFloat(req.SmallBlind),
		BigBlind:       decimal.NewFromFloat(req.BigBlind),
		BuyInMin:       decimal.NewFromFloat(req.BuyInMin),
		BuyInMax:       decimal.NewFromFloat(req.BuyInMax),
		IdleLimit:      idle,
		TurnSeconds:    req.TurnSeconds,
		HandGapSeconds: req.HandGapSeconds,
	}

	r, err := s.reg.Create(p, true, s.hub.BroadcastToRoom, s.recordHandHistory)
	if err != nil {
		status := http.StatusInternalServerError
		if err == registry.ErrDuplicateName {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	r.SetCashOutHook(s.cashOut)
	c.JSON(http.StatusCreated, gin.H{"room_id": r.ID})
}

func (s *Server) handleGetRoom(c *gin.Context) {
	r, err := s.reg.Get(c.Param("room_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, r.Snapshot())
}

// cashOut credits a vacated seat's remaining chips (stand-up, or an offline
// seat reclaimed at a hand boundary) back to the player's account balance
// (the original's cash_out behavior, §9).
func (s *Server) cashOut(username string, chips decimal.Decimal) {
	if err := s.users.UpdateBalance(context.Background(), username, chips); err != nil {
		log.Printf("main: cash-out failed for %s: %v", username, err)
	}
}

// recordHandHistory adapts a finished Game hand to the storage sink's wider,
// string-flattened shape (storage never imports internal/game, §2).
func (s *Server) recordHandHistory(roomID string, rec game.HandHistoryRecord) {
	if s.history == nil {
		return
	}
	cards := make([]string, len(rec.CommunityCards))
	for i, c := range rec.CommunityCards {
		cards[i] = c.String()
	}
	winners := make([]storage.HandWinnerRecord, len(rec.Winners))
	for i, w := range rec.Winners {
		winners[i] = storage.HandWinnerRecord{
			Seat: w.Seat, Username: w.Username, Amount: w.Amount.String(), HandDesc: w.HandDesc,
		}
	}
	err := s.history.Record(context.Background(), storage.HandHistoryRecord{
		HandID:         rec.HandID,
		RoomID:         roomID,
		FinishedAt:     rec.FinishedAt,
		CommunityCards: cards,
		Winners:        winners,
		Pot:            rec.Pot.String(),
	})
	if err != nil {
		log.Printf("main: failed to record hand history for room %s: %v", roomID, err)
	}
}

func port() string {
	if p := os.Getenv("GAME_SERVER_PORT"); p != "" {
		return p
	}
	return "3002"
}

func buildSnapshotStore() *storage.FileSnapshotStore {
	root := os.Getenv("ROOM_STORAGE_PATH")
	if root == "" {
		root = "./data"
	}
	return storage.NewFileSnapshotStore(root)
}

func buildUserStore() storage.UserStore {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Printf("main: POSTGRES_DSN not set, using NoopUserStore")
		return storage.NoopUserStore{}
	}
	us, err := postgres.Open(context.Background(), dsn)
	if err != nil {
		log.Printf("main: failed to connect to postgres, falling back to NoopUserStore: %v", err)
		return storage.NoopUserStore{}
	}
	return us
}

func buildHandHistoryStore() storage.HandHistoryStore {
	host := os.Getenv("CLICKHOUSE_HOST")
	if host == "" {
		log.Printf("main: CLICKHOUSE_HOST not set, using NoopHandHistory")
		return storage.NoopHandHistory{}
	}
	port, err := strconv.Atoi(envOr("CLICKHOUSE_PORT", "9000"))
	if err != nil {
		port = 9000
	}
	cfg := storage.ClickHouseConfig{
		Host:     host,
		Port:     port,
		Database: envOr("CLICKHOUSE_DATABASE", "default"),
		Username: envOr("CLICKHOUSE_USERNAME", "default"),
		Password: os.Getenv("CLICKHOUSE_PASSWORD"),
	}
	hh, err := storage.NewClickHouseHandHistory(context.Background(), cfg)
	if err != nil {
		log.Printf("main: failed to connect to clickhouse, falling back to NoopHandHistory: %v", err)
		return storage.NoopHandHistory{}
	}
	return hh
}

func buildEventPublisher() events.RoomPublisher {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		log.Printf("main: KAFKA_BROKERS not set, using NoopPublisher")
		return events.NoopPublisher{}
	}
	pub, err := events.NewPublisher(events.DefaultProducerConfig(strings.Split(brokers, ",")))
	if err != nil {
		log.Printf("main: failed to connect to kafka, falling back to NoopPublisher: %v", err)
		return events.NoopPublisher{}
	}
	return pub
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

