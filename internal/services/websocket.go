package services

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"grantdesk/internal/chat"
	"grantdesk/internal/docstore"
	"grantdesk/internal/domain"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

// feedFrame is one snapshot pushed to a live feed client
type feedFrame struct {
	InquiryID string           `json:"inquiry_id"`
	Messages  []domain.Message `json:"messages"`
}

// LiveFeeds streams inquiry message logs over WebSocket
type LiveFeeds struct {
	chat     *chat.Service
	auth     *AuthService
	mux      muxer
	upgrader websocket.Upgrader
}

// NewLiveFeeds creates the live feed endpoints. Origins are checked against
// allowedOrigins; "*" allows any origin.
func NewLiveFeeds(svc *chat.Service, auth *AuthService, allowedOrigins []string) *LiveFeeds {
	return &LiveFeeds{
		chat: svc,
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      originChecker(allowedOrigins),
		},
	}
}

// Mount registers the live feed endpoints
func (f *LiveFeeds) Mount(mux muxer) {
	f.mux = mux
	mux.Handle(http.MethodGet, "/api/v1/inquiries/{id}/messages/live", f.auth.Require(f.serve(false)))
	mux.Handle(http.MethodGet, "/api/v1/inquiries/{id}/messages/last/live", f.auth.Require(f.serve(true)))
}

func (f *LiveFeeds) serve(lastOnly bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inquiry, err := loadAuthorizedInquiry(r.Context(), f.chat, f.mux.Vars(r)["id"])
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}

		conn, err := f.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[WS] Upgrade failed for inquiry %s: %v", inquiry.ID, err)
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		var sub *docstore.Subscription
		if lastOnly {
			sub, err = f.chat.SubscribeToLastMessage(ctx, inquiry.ID)
		} else {
			sub, err = f.chat.SubscribeToInquiryMessages(ctx, inquiry.ID)
		}
		if err != nil {
			log.Printf("[WS] Subscribe failed for inquiry %s: %v", inquiry.ID, err)
			closeWith(conn, websocket.CloseInternalServerErr, "couldn't load conversation")
			return
		}
		defer sub.Unsubscribe()

		log.Printf("[WS] Feed opened for inquiry %s (last_only=%v)", inquiry.ID, lastOnly)
		go readPump(conn, cancel)
		writePump(ctx, conn, inquiry.ID, sub)
		log.Printf("[WS] Feed closed for inquiry %s", inquiry.ID)
	}
}

// readPump discards client frames and keeps the read deadline fresh with pongs.
// It cancels the feed when the client goes away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, inquiryID string, sub *docstore.Subscription) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			closeWith(conn, websocket.CloseNormalClosure, "")
			return
		case msgs, ok := <-sub.Updates():
			if !ok {
				if err := sub.Err(); err != nil {
					closeWith(conn, websocket.CloseInternalServerErr, "couldn't load conversation")
				}
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(feedFrame{InquiryID: inquiryID, Messages: msgs}); err != nil {
				log.Printf("[WS] Write failed for inquiry %s: %v", inquiryID, err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
