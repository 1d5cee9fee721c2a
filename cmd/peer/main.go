// Command peer is a headless participant: it obtains an anon id, joins
// the matching queue over the websocket, and drives the negotiation
// state machine with synthetic media. Useful for smoke-testing a
// deployment without a browser.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"stringchat/backend/internal/models"
	"stringchat/backend/internal/peer"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
)

var stunServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// wsSignaler sends negotiation payloads back through the relay socket.
type wsSignaler struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSignaler) sendEvent(event string, payload any) error {
	env, err := models.Wrap(event, payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(env)
}

func (s *wsSignaler) SendOffer(to string, sdp webrtc.SessionDescription) error {
	raw, err := json.Marshal(sdp)
	if err != nil {
		return err
	}
	return s.sendEvent(models.EventOffer, models.SignalPayload{To: to, Offer: raw})
}

func (s *wsSignaler) SendAnswer(to string, sdp webrtc.SessionDescription) error {
	raw, err := json.Marshal(sdp)
	if err != nil {
		return err
	}
	return s.sendEvent(models.EventAnswer, models.SignalPayload{To: to, Answer: raw})
}

func (s *wsSignaler) SendCandidate(to string, cand webrtc.ICECandidateInit) error {
	raw, err := json.Marshal(cand)
	if err != nil {
		return err
	}
	return s.sendEvent(models.EventCandidate, models.SignalPayload{To: to, Candidate: raw})
}

func main() {
	server := flag.String("server", "http://localhost:3001", "server base URL")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	token, anonID := fetchAnonID(*server)
	slog.Info("anon id issued", "anonID", anonID)

	conn := dial(*server, token)
	defer conn.Close()

	signaler := &wsSignaler{conn: conn}
	machine := peer.NewMachine(signaler, peer.NewSyntheticSource(), stunServers)
	machine.OnStateChange = func(s peer.State) {
		slog.Info("peer state", "state", s.String())
	}
	defer machine.Close()

	if err := machine.Start(ctx); err != nil {
		log.Fatalf("media acquisition failed: %v", err)
	}
	if err := signaler.sendEvent(models.EventJoinQueue, models.JoinQueuePayload{}); err != nil {
		log.Fatalf("join queue failed: %v", err)
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var env models.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Fatalf("socket read failed: %v", err)
		}
		handleEvent(ctx, machine, signaler, env)
	}
}

func handleEvent(ctx context.Context, machine *peer.Machine, signaler *wsSignaler, env models.Envelope) {
	switch env.Event {
	case models.EventWaiting:
		slog.Info("waiting for a partner")

	case models.EventMatched:
		var p models.MatchedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		slog.Info("matched", "partner", p.PartnerID, "initiator", p.Initiator)
		if err := machine.HandleMatched(p.PartnerID, p.Initiator); err != nil {
			slog.Error("negotiation start failed", "err", err)
		}

	case models.EventOffer:
		var p models.SignalPayload
		var sdp webrtc.SessionDescription
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		if err := json.Unmarshal(p.Offer, &sdp); err != nil {
			return
		}
		if err := machine.HandleOffer(p.From, sdp); err != nil {
			slog.Error("offer handling failed", "err", err)
		}

	case models.EventAnswer:
		var p models.SignalPayload
		var sdp webrtc.SessionDescription
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		if err := json.Unmarshal(p.Answer, &sdp); err != nil {
			return
		}
		if err := machine.HandleAnswer(sdp); err != nil {
			slog.Error("answer handling failed", "err", err)
		}

	case models.EventCandidate:
		var p models.SignalPayload
		var cand webrtc.ICECandidateInit
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		if err := json.Unmarshal(p.Candidate, &cand); err != nil {
			return
		}
		machine.HandleCandidate(cand)

	case models.EventChat:
		var p models.ChatRecvPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		slog.Info("chat", "from", p.From, "text", p.Text)

	case models.EventPartnerLeft:
		slog.Info("partner left, re-entering queue")
		machine.Close()
		if err := machine.Start(ctx); err != nil {
			slog.Error("restart failed", "err", err)
			return
		}
		signaler.sendEvent(models.EventJoinQueue, models.JoinQueuePayload{})
	}
}

func fetchAnonID(server string) (token, anonID string) {
	resp, err := http.Get(server + "/anonid")
	if err != nil {
		log.Fatalf("anonid request failed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Token  string `json:"token"`
		AnonID string `json:"anon_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Fatalf("anonid decode failed: %v", err)
	}
	return body.Token, body.AnonID
}

func dial(server, token string) *websocket.Conn {
	wsURL := strings.Replace(server, "http", "ws", 1) + "/ws?token=" + url.QueryEscape(token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatalf("websocket dial failed: %v", err)
	}
	return conn
}
