// Command ws_smoke exercises the full delivery path against a running
// server: it opens a subscriber socket, authorizes the conversation channel,
// subscribes, posts a message over HTTP and waits for the event to arrive.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/deskchat/deskchat-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("base", "http://localhost:8080", "server base URL")
	token := flag.String("token", "", "bearer token of the subscribing participant")
	collaborator := flag.String("collaborator", "1", "collaborator id")
	sender := flag.String("sender", "2", "sender id")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 10*time.Second, "total timeout for the run")
	flag.Parse()

	if *token == "" {
		return fmt.Errorf("-token is required; register via POST %s/api/register first", *base)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *base+"/realtime/ws", nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	var outbound proto.Outbound
	if err := wsjson.Read(ctx, conn, &outbound); err != nil {
		return fmt.Errorf("read connection_established: %w", err)
	}
	if outbound.Type != proto.OutboundTypeConnectionEstablished {
		return fmt.Errorf("expected connection_established, got %s", outbound.Type)
	}
	var established proto.ConnectionEstablished
	if err := json.Unmarshal(outbound.Data, &established); err != nil {
		return fmt.Errorf("unmarshal connection_established: %w", err)
	}
	fmt.Printf("Socket established: %s\n", established.SocketID)

	channel := fmt.Sprintf("private-chat-%s-%s", minID(*collaborator, *sender), maxID(*collaborator, *sender))

	auth, err := authorize(ctx, *base, *token, established.SocketID, channel)
	if err != nil {
		return err
	}

	subPayload, _ := json.Marshal(proto.SubscribeData{Channel: channel, Auth: auth})
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeSubscribe, Data: subPayload}); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}
	if err := wsjson.Read(ctx, conn, &outbound); err != nil {
		return fmt.Errorf("read subscribe ack: %w", err)
	}
	if outbound.Type != proto.OutboundTypeSubscribed {
		return fmt.Errorf("subscribe rejected: %+v", outbound)
	}
	fmt.Printf("Subscribed: %s\n", channel)

	if err := sendMessage(ctx, *base, *collaborator, *sender, *text); err != nil {
		return err
	}

	for {
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		if outbound.Type != proto.OutboundTypeEvent || outbound.Event != "message" {
			fmt.Printf("Received outbound: type=%s event=%s\n", outbound.Type, outbound.Event)
			continue
		}

		var evt proto.ChatMessage
		if err := json.Unmarshal(outbound.Data, &evt); err != nil {
			fmt.Printf("Raw data: %s\n", string(outbound.Data))
			return fmt.Errorf("unmarshal message event: %w", err)
		}
		fmt.Printf("EventMessage: id=%d sender=%d collaborator=%d text=%q sentAt=%s\n",
			evt.ID, evt.SenderID, evt.CollaboratorID, evt.Text, evt.SentAt)
		return nil
	}
}

func authorize(ctx context.Context, base, token, socketID, channel string) (string, error) {
	body, _ := json.Marshal(map[string]string{"socketId": socketID, "channelName": channel})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/realtime/auth", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth request: status %d", resp.StatusCode)
	}

	var out struct {
		Auth string `json:"auth"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode auth response: %w", err)
	}
	return out.Auth, nil
}

func sendMessage(ctx context.Context, base, collaborator, sender, text string) error {
	body, _ := json.Marshal(map[string]string{
		"collaboratorId": collaborator,
		"senderId":       sender,
		"text":           text,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/chat/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("send request: status %d", resp.StatusCode)
	}
	fmt.Printf("Message posted: collaborator=%s sender=%s\n", collaborator, sender)
	return nil
}

// minID and maxID order decimal id strings numerically by length then value.
func minID(a, b string) string {
	if less(a, b) {
		return a
	}
	return b
}

func maxID(a, b string) string {
	if less(a, b) {
		return b
	}
	return a
}

func less(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return strings.Compare(a, b) < 0
}
