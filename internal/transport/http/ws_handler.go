package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/deskchat/deskchat-server/internal/chat"
	"github.com/deskchat/deskchat-server/internal/gateway"
	"github.com/deskchat/deskchat-server/internal/gateway/hub"
	"github.com/deskchat/deskchat-server/internal/proto"
)

// WSHandler upgrades HTTP connections into subscriber sockets bridged to the hub.
type WSHandler struct {
	hub        *hub.Hub
	authorizer *chat.Authorizer
	log        *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(h *hub.Hub, authorizer *chat.Authorizer, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: h, authorizer: authorizer, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := hub.NewClient(uuid.NewString())
	if err := h.hub.Register(ctx, client); err != nil {
		h.log.Error().Err(err).Msg("register subscriber")
		return
	}
	defer func() {
		_ = h.hub.Unregister(context.WithoutCancel(ctx), client)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The socket id is what the client presents to the handshake endpoint.
	established, _ := json.Marshal(proto.ConnectionEstablished{SocketID: client.ID})
	if err := wsjson.Write(ctx, conn, proto.Outbound{
		Type: proto.OutboundTypeConnectionEstablished,
		Data: established,
	}); err != nil {
		h.log.Warn().Err(err).Msg("write connection_established")
		return
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		reply := h.handleInbound(ctx, client, inbound)
		if reply != nil {
			if writeErr := wsjson.Write(ctx, conn, *reply); writeErr != nil {
				return writeErr
			}
		}
	}
}

func protoError(code, msg string) *proto.Outbound {
	return &proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: code, Msg: msg},
	}
}

func (h *WSHandler) handleInbound(ctx context.Context, client *hub.Client, inbound proto.Inbound) *proto.Outbound {
	switch inbound.Type {
	case proto.InboundTypeSubscribe:
		var sub proto.SubscribeData
		if err := json.Unmarshal(inbound.Data, &sub); err != nil || sub.Channel == "" {
			return protoError("bad_request", "channel is required")
		}

		// The handshake credential gates the subscription; the hub itself
		// only tracks membership.
		if err := h.authorizer.VerifyCredential(sub.Auth, client.ID, sub.Channel); err != nil {
			h.log.Debug().Err(err).
				Str("client_id", client.ID).
				Str("channel", sub.Channel).
				Msg("subscribe rejected")
			return protoError(chat.ErrCodeForbiddenChannel, "forbidden channel")
		}

		if err := h.hub.Subscribe(ctx, client, sub.Channel); err != nil {
			return protoError("bad_request", err.Error())
		}
		return &proto.Outbound{Type: proto.OutboundTypeSubscribed, Channel: sub.Channel}
	case proto.InboundTypeUnsubscribe:
		var unsub proto.UnsubscribeData
		if err := json.Unmarshal(inbound.Data, &unsub); err != nil || unsub.Channel == "" {
			return protoError("bad_request", "channel is required")
		}
		if err := h.hub.Unsubscribe(ctx, client, unsub.Channel); err != nil {
			return protoError("bad_request", err.Error())
		}
		return nil
	default:
		return protoError("invalid_message", "unknown message type")
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) error {
	for {
		select {
		case ev, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(ev)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func outboundFromEvent(ev gateway.Event) proto.Outbound {
	return proto.Outbound{
		Type:    proto.OutboundTypeEvent,
		Channel: ev.Channel,
		Event:   ev.Name,
		Data:    ev.Payload,
	}
}
