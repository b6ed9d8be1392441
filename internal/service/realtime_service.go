package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/internhub-api/internal/dto"
)

const realtimeFrameSchemaURL = "internhub://realtime/inbound.json"

const realtimeFrameSchema = `{
	"type": "object",
	"required": ["type"],
	"properties": {
		"type": {"enum": ["register", "ping"]},
		"userId": {"type": "integer", "minimum": 1}
	},
	"if": {"properties": {"type": {"const": "register"}}},
	"then": {"required": ["userId"]}
}`

// ErrRealtimeIdentityMismatch indicates a register frame for a user other than the authenticated one.
var ErrRealtimeIdentityMismatch = errors.New("register user does not match authenticated user")

// RealtimeConnectionOptions wraps metadata extracted during the HTTP upgrade.
type RealtimeConnectionOptions struct {
	// AuthenticatedUserID is set when the upgrade request carried a valid token.
	AuthenticatedUserID uint
	CorrelationID       string
}

// RealtimeService serves websocket sessions and binds them into the connection registry.
type RealtimeService interface {
	ServeConnection(conn *websocket.Conn, opts RealtimeConnectionOptions)
}

type realtimeService struct {
	registry     *ConnectionRegistry
	schema       *jsonschema.Schema
	sendBuffer   int
	pingInterval time.Duration
	logger       zerolog.Logger
}

// NewRealtimeService constructs the websocket session service.
func NewRealtimeService(registry *ConnectionRegistry, sendBuffer int, pingInterval time.Duration, logger zerolog.Logger) (RealtimeService, error) {
	schema, err := compileRealtimeSchema()
	if err != nil {
		return nil, err
	}

	return &realtimeService{
		registry:     registry,
		schema:       schema,
		sendBuffer:   sendBuffer,
		pingInterval: pingInterval,
		logger:       logger.With().Str("component", "realtime_service").Logger(),
	}, nil
}

func compileRealtimeSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(realtimeFrameSchemaURL, strings.NewReader(realtimeFrameSchema)); err != nil {
		return nil, fmt.Errorf("load realtime frame schema: %w", err)
	}
	schema, err := compiler.Compile(realtimeFrameSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile realtime frame schema: %w", err)
	}
	return schema, nil
}

func (s *realtimeService) ServeConnection(conn *websocket.Conn, opts RealtimeConnectionOptions) {
	logger := s.logger
	if opts.CorrelationID != "" {
		logger = logger.With().Str("correlation_id", opts.CorrelationID).Logger()
	}

	channel := newWSChannel(conn, s.sendBuffer, s.pingInterval, logger)
	go channel.writer()

	var (
		userID uint
		token  string
	)
	defer func() {
		if token != "" && s.registry.Unregister(userID, token) {
			logger.Debug().Uint("user_id", userID).Msg("realtime channel unregistered")
		}
		_ = channel.Close()
		// the connection is recycled once this handler returns
		<-channel.done
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			logger.Debug().Err(err).Msg("realtime read loop ended")
			return
		}

		frame, err := s.decodeFrame(raw)
		if err != nil {
			s.reply(channel, dto.RealtimeEvent{Type: dto.RealtimeTypeError, Reason: "invalid_frame"})
			continue
		}

		switch frame.Type {
		case dto.RealtimeTypeRegister:
			if opts.AuthenticatedUserID != 0 && frame.UserID != opts.AuthenticatedUserID {
				logger.Warn().Uint("user_id", frame.UserID).Err(ErrRealtimeIdentityMismatch).Msg("realtime register rejected")
				s.reply(channel, dto.RealtimeEvent{Type: dto.RealtimeTypeError, Reason: "forbidden"})
				continue
			}

			if token != "" && userID != frame.UserID {
				s.registry.Unregister(userID, token)
			}
			userID = frame.UserID
			token = s.registry.Register(userID, channel)

			logger.Info().Uint("user_id", userID).Msg("realtime channel registered")
			s.reply(channel, dto.RealtimeEvent{Type: dto.RealtimeTypeRegistered, UserID: userID})
		case dto.RealtimeTypePing:
			s.reply(channel, dto.RealtimeEvent{Type: dto.RealtimeTypePong})
		}
	}
}

func (s *realtimeService) decodeFrame(raw []byte) (dto.RealtimeInbound, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var document interface{}
	if err := decoder.Decode(&document); err != nil {
		return dto.RealtimeInbound{}, err
	}
	if err := s.schema.Validate(document); err != nil {
		return dto.RealtimeInbound{}, err
	}

	var frame dto.RealtimeInbound
	if err := json.Unmarshal(raw, &frame); err != nil {
		return dto.RealtimeInbound{}, err
	}
	return frame, nil
}

func (s *realtimeService) reply(channel Channel, event dto.RealtimeEvent) {
	if err := channel.Send(event); err != nil {
		s.logger.Debug().Err(err).Str("type", event.Type).Msg("failed to queue realtime reply")
	}
}
