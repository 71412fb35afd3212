// Package hub is the Session Hub (§4.5): it owns every live WebSocket
// connection, enforces one active connection per player, and fans game
// state out to the room's current occupants. Grounded on the UserRoom +
// per-room client-set pattern of the rias-glitch Telegram webapp's ws hub
// and the Connection/Send-channel pump pair of moonhole-HoldemIJ's gateway.
package hub

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"pineapple-room-server/internal/events"
	"pineapple-room-server/internal/game"
	"pineapple-room-server/internal/metrics"
	"pineapple-room-server/internal/registry"
	"pineapple-room-server/internal/room"
	"pineapple-room-server/internal/storage"
)

// Hub owns username -> *Client and roomID -> set of *Client. Its own mutex
// is the innermost in the lock order (Registry -> Room -> Hub, §5): it is
// never held while calling into a Registry or Room method.
type Hub struct {
	mu    sync.RWMutex
	byUser map[string]*Client
	byRoom map[string]map[string]*Client // roomID -> username -> *Client

	reg     *registry.Registry
	history storage.HandHistoryStore
	events  events.RoomPublisher
}

// NewHub wires a Hub to the registry it serves. history and pub may be noop
// implementations when those adapters aren't configured.
func NewHub(reg *registry.Registry, history storage.HandHistoryStore, pub events.RoomPublisher) *Hub {
	return &Hub{
		byUser:  make(map[string]*Client),
		byRoom:  make(map[string]map[string]*Client),
		reg:     reg,
		history: history,
		events:  pub,
	}
}

// Serve takes ownership of an already-upgraded socket for username in
// roomID: it evicts any previous connection for that username (single
// active connection, §4.5), registers/reconnects room membership, and
// starts the read/write pumps. It blocks until the connection closes.
func (h *Hub) Serve(conn *websocket.Conn, roomID, username string) {
	r, err := h.reg.Get(roomID)
	if err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "room not found"), time.Now().Add(writeWait))
		conn.Close()
		return
	}

	c := newClient(h, conn, username, roomID)
	h.evictExisting(username)

	if _, err := r.AddMember(username); err != nil {
		c.closeWithReason(websocket.CloseNormalClosure, err.Error())
		conn.Close()
		return
	}
	_ = r.Reconnect(username)

	h.mu.Lock()
	h.byUser[username] = c
	if h.byRoom[roomID] == nil {
		h.byRoom[roomID] = make(map[string]*Client)
	}
	h.byRoom[roomID][username] = c
	h.mu.Unlock()
	metrics.ConnectedSessions.Inc()

	log.Printf("hub: %s connected to room %s", username, roomID)
	h.announcePresence(roomID, username, TypePlayerConnected)
	h.pushRoomUpdate(r)
	h.pushGameState(r, "connect")
	h.pushPlayerHand(r, username)

	go c.writePump()
	c.readPump() // blocks until the socket closes
}

// evictExisting closes out a stale connection under the same username,
// enforcing single-active-connection semantics (§4.5).
func (h *Hub) evictExisting(username string) {
	h.mu.Lock()
	old, ok := h.byUser[username]
	h.mu.Unlock()
	if !ok {
		return
	}
	old.closeWithReason(websocket.CloseNormalClosure, "replaced by a new connection")
}

// disconnect removes a client from both indexes, but only if it is still
// the currently registered connection for that username (a fast
// reconnect may already have replaced it).
func (h *Hub) disconnect(c *Client) {
	h.mu.Lock()
	current, ok := h.byUser[c.Username]
	isCurrent := ok && current == c
	if isCurrent {
		delete(h.byUser, c.Username)
		if set, ok := h.byRoom[c.RoomID]; ok {
			delete(set, c.Username)
			if len(set) == 0 {
				delete(h.byRoom, c.RoomID)
			}
		}
	}
	h.mu.Unlock()
	close(c.Send)
	if !isCurrent {
		return
	}
	metrics.ConnectedSessions.Dec()

	if r, err := h.reg.Get(c.RoomID); err == nil {
		_ = r.Leave(c.Username)
		h.pushRoomUpdate(r)
	}
	h.announcePresence(c.RoomID, c.Username, TypePlayerDisconnected)
	log.Printf("hub: %s disconnected from room %s", c.Username, c.RoomID)
}

func (h *Hub) announcePresence(roomID, username, msgType string) {
	payload, err := marshalEnvelope(msgType, PresenceOut{Username: username})
	if err != nil {
		return
	}
	h.broadcastRaw(roomID, payload)
}

// dispatch routes one inbound frame from c to the appropriate handler.
func (h *Hub) dispatch(c *Client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.sendError(c, "malformed message")
		return
	}
	switch env.Type {
	case TypePing:
		h.handlePing(c)
	case TypeChat:
		h.handleChat(c, env.Data)
	case TypeGameAction:
		h.handleGameAction(c, env.Data)
	case TypeRoomAction:
		h.handleRoomAction(c, env.Data)
	default:
		h.sendError(c, "unknown message type: "+env.Type)
	}
}

func (h *Hub) handlePing(c *Client) {
	payload, _ := marshalEnvelope(TypePong, PongOut{Timestamp: time.Now().Unix()})
	h.sendToClient(c, payload)
}

func (h *Hub) handleChat(c *Client, data json.RawMessage) {
	var in ChatIn
	if err := json.Unmarshal(data, &in); err != nil {
		h.sendError(c, "invalid chat payload")
		return
	}
	out := ChatOut{Player: c.Username, Message: in.Message, Timestamp: time.Now()}
	payload, err := marshalEnvelope(TypeChat, out)
	if err != nil {
		return
	}
	h.broadcastRaw(c.RoomID, payload)
}

func (h *Hub) handleGameAction(c *Client, data json.RawMessage) {
	var in GameActionIn
	if err := json.Unmarshal(data, &in); err != nil {
		h.sendError(c, "invalid game_action payload")
		return
	}
	r, err := h.reg.Get(c.RoomID)
	if err != nil {
		h.sendError(c, "room not found")
		return
	}

	if in.Action == ActionShowCard {
		h.handleShowCard(c, r)
		return
	}
	if in.Action == ActionDiscard {
		if err := r.HandleDiscard(c.Username, in.CardIndex); err != nil {
			h.sendError(c, errMessage(err))
		}
		return
	}
	at, ok := game.ParseAction(in.Action)
	if !ok {
		h.sendError(c, "unrecognized action: "+in.Action)
		return
	}
	amount := decimal.NewFromFloat(in.Amount)
	if err := r.HandleAction(c.Username, at, amount); err != nil {
		h.sendError(c, errMessage(err))
	}
}

// handleShowCard implements the voluntary hand-reveal supplemented feature
// (§9): the player's current hole cards are broadcast to the room as a
// one-off player_hand message, not persisted anywhere.
func (h *Hub) handleShowCard(c *Client, r *room.Room) {
	cards, err := r.HoleCardsOf(c.Username)
	if err != nil {
		h.sendError(c, errMessage(err))
		return
	}
	payload, merr := marshalEnvelope(TypePlayerHand, PlayerHandOut{MyHand: cards})
	if merr != nil {
		return
	}
	h.broadcastRaw(c.RoomID, payload)
}

func (h *Hub) handleRoomAction(c *Client, data json.RawMessage) {
	var in RoomActionIn
	if err := json.Unmarshal(data, &in); err != nil {
		h.sendError(c, "invalid room_action payload")
		return
	}
	r, err := h.reg.Get(c.RoomID)
	if err != nil {
		h.sendError(c, "room not found")
		return
	}

	switch in.Action {
	case RoomActionSitDown:
		if err := r.SitDown(c.Username, in.Seat, decimal.NewFromFloat(in.Amount)); err != nil {
			h.sendError(c, errMessage(err))
			return
		}
	case RoomActionBuyIn:
		if err := r.BuyIn(c.Username, decimal.NewFromFloat(in.Amount)); err != nil {
			h.sendError(c, errMessage(err))
			return
		}
	case RoomActionStandUp:
		if err := r.StandUp(c.Username); err != nil {
			h.sendError(c, errMessage(err))
			return
		}
	case RoomActionChangeSeat:
		if err := r.ChangeSeat(c.Username, in.NewSeat); err != nil {
			h.sendError(c, errMessage(err))
			return
		}
	case RoomActionStartGame:
		if r.Owner() != c.Username {
			h.sendError(c, "only the room owner may start the game")
			return
		}
		if err := r.StartGame(0); err != nil {
			h.sendError(c, errMessage(err))
			return
		}
		if h.events != nil {
			_ = h.events.Publish(events.RoomEvent{RoomID: c.RoomID, Type: "game_started"})
		}
	case RoomActionExitGame:
		if err := h.reg.RemovePlayer(c.RoomID, c.Username); err != nil {
			h.sendError(c, errMessage(err))
			return
		}
	case RoomActionGetGameHistory:
		h.sendGameHistory(c)
		return
	default:
		h.sendError(c, "unrecognized room action: "+in.Action)
		return
	}
	h.pushRoomUpdate(r)
	h.pushGameState(r, "room_action:"+in.Action)
}

func (h *Hub) sendGameHistory(c *Client) {
	if h.history == nil {
		h.sendToClient(c, mustEnvelope(TypeRoomUpdate, RoomUpdateOut{RoomID: c.RoomID}))
		return
	}
	recs, err := h.history.Recent(context.Background(), c.RoomID, 20)
	if err != nil {
		h.sendError(c, "failed to load hand history")
		return
	}
	hands := make([]RecentHand, 0, len(recs))
	for _, rec := range recs {
		winners := make([]string, 0, len(rec.Winners))
		for _, w := range rec.Winners {
			winners = append(winners, w.Username)
		}
		hands = append(hands, RecentHand{HandID: rec.HandID, Pot: rec.Pot, FinishedAt: rec.FinishedAt, Winners: winners})
	}
	payload, err := marshalEnvelope(TypeRoomUpdate, RoomUpdateOut{RoomID: c.RoomID, RecentHands: hands})
	if err != nil {
		return
	}
	h.sendToClient(c, payload)
}

func (h *Hub) sendError(c *Client, message string) {
	payload, err := marshalEnvelope(TypeError, ErrorOut{Message: message})
	if err != nil {
		return
	}
	h.sendToClient(c, payload)
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// sendToClient delivers a pre-encoded frame to one client, dropping it
// rather than blocking if the client's buffer is full.
func (h *Hub) sendToClient(c *Client, payload []byte) {
	select {
	case c.Send <- payload:
	default:
		log.Printf("hub: dropping message for %s, send buffer full", c.Username)
	}
}

// sendToUser looks up a user's current connection (if any) and delivers a
// pre-encoded frame to it.
func (h *Hub) sendToUser(username string, payload []byte) {
	h.mu.RLock()
	c, ok := h.byUser[username]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.sendToClient(c, payload)
}

// broadcastRaw delivers a pre-encoded frame to every client currently in
// roomID.
func (h *Hub) broadcastRaw(roomID string, payload []byte) {
	h.mu.RLock()
	set := h.byRoom[roomID]
	clients := make([]*Client, 0, len(set))
	for _, c := range set {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		h.sendToClient(c, payload)
	}
}

// BroadcastToRoom matches room.BroadcastFunc and is wired directly as the
// broadcast hook passed to registry.Create: every Game-triggered state
// change pushes a game_update immediately, and hole-card-affecting reasons
// also push each occupant's private hand (§4.5 sendPlayerHand, §4.6).
func (h *Hub) BroadcastToRoom(roomID string, snap game.Snapshot, reason string) {
	payload, err := marshalEnvelope(TypeGameUpdate, GameUpdateOut{
		GameState:    snap,
		ChangeReason: reason,
		IsKeyUpdate:  isKeyReason(reason),
	})
	if err != nil {
		return
	}
	h.broadcastRaw(roomID, payload)

	if strings.Contains(reason, "discard") || reason == "start_round" {
		r, err := h.reg.Get(roomID)
		if err != nil {
			return
		}
		h.pushAllPlayerHands(r, snap)
	}
}

func isKeyReason(reason string) bool {
	return reason == "start_round" || reason == "settle" || reason == "advance_betting_round"
}

func (h *Hub) pushGameState(r *room.Room, reason string) {
	h.BroadcastToRoom(r.ID, r.Snapshot(), reason)
}

func (h *Hub) pushAllPlayerHands(r *room.Room, snap game.Snapshot) {
	for _, sv := range snap.Seats {
		if !sv.Occupied || sv.Username == "" {
			continue
		}
		h.pushPlayerHand(r, sv.Username)
	}
}

// pushPlayerHand sends username's current hole cards and discarded card
// privately; it is a no-op if they aren't seated or have no connection.
func (h *Hub) pushPlayerHand(r *room.Room, username string) {
	cards, discarded, err := r.HandViewOf(username)
	if err != nil || len(cards) == 0 {
		return
	}
	payload, merr := marshalEnvelope(TypePlayerHand, PlayerHandOut{MyHand: cards, DiscardedCard: discarded})
	if merr != nil {
		return
	}
	h.sendToUser(username, payload)
}

func (h *Hub) pushRoomUpdate(r *room.Room) {
	payload, err := marshalEnvelope(TypeRoomUpdate, RoomUpdateOut{
		RoomID:      r.ID,
		Status:      r.Status.String(),
		MemberCount: r.MemberCount(),
	})
	if err != nil {
		return
	}
	h.broadcastRaw(r.ID, payload)
}

// NotifyExpiry is wired as the registry's ExpiryNotifier and pushes
// room_expiring/room_expired lifecycle notices (§4.4).
func (h *Hub) NotifyExpiry(roomID, eventName string) {
	if h.events != nil {
		_ = h.events.Publish(events.RoomEvent{RoomID: roomID, Type: eventName, Timestamp: time.Now()})
	}
	payload, err := marshalEnvelope(eventName, LifecycleOut{RoomID: roomID})
	if err != nil {
		return
	}
	h.broadcastRaw(roomID, payload)
}

func mustEnvelope(msgType string, payload interface{}) []byte {
	b, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return nil
	}
	return b
}

// IsMember satisfies auth.MembershipChecker by delegating to the registry.
func (h *Hub) IsMember(roomID, username string) bool {
	r, err := h.reg.Get(roomID)
	if err != nil {
		return false
	}
	return r.IsMember(username)
}
