package server

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/npezzotti/go-studychat/internal/database"
	"github.com/npezzotti/go-studychat/internal/types"
)

var validate = newValidator()

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationReason(err error) string {
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) && len(vErrs) > 0 {
		return fmt.Sprintf("%s is %s", vErrs[0].Field(), vErrs[0].Tag())
	}
	return err.Error()
}

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage carries exactly one of its variants.
type ClientMessage struct {
	BaseMessage
	Join         *Join         `json:"join,omitempty"`
	Leave        *Leave        `json:"leave,omitempty"`
	GroupSubmit  *GroupSubmit  `json:"group_submit,omitempty"`
	Register     *Register     `json:"register,omitempty"`
	JoinPrivate  *JoinPrivate  `json:"join_private,omitempty"`
	DirectSubmit *DirectSubmit `json:"direct_submit,omitempty"`
	UserId       string        `json:"-"`
	client       *Client       `json:"-"`
}

type Join struct {
	RoomId string `json:"room_id" validate:"required"`
}

type Leave struct {
	RoomId string `json:"room_id" validate:"required"`
}

type GroupSubmit struct {
	RoomId     string `json:"room_id" validate:"required"`
	SenderId   string `json:"sender_id,omitempty"`
	SenderName string `json:"sender_name" validate:"required"`
	Text       string `json:"text" validate:"required"`
}

type Register struct {
	UserId string `json:"user_id,omitempty"`
}

type JoinPrivate struct {
	UserId string `json:"user_id,omitempty"`
}

type DirectSubmit struct {
	SenderId   string `json:"sender_id,omitempty"`
	ReceiverId string `json:"receiver_id" validate:"required"`
	Text       string `json:"text" validate:"required"`
}

type eventKind int

const (
	kindInvalid eventKind = iota
	kindJoin
	kindLeave
	kindGroupSubmit
	kindRegister
	kindJoinPrivate
	kindDirectSubmit
)

// kind returns the variant the message carries, or kindInvalid when it
// carries none or more than one.
func (m *ClientMessage) kind() eventKind {
	var (
		k = kindInvalid
		n int
	)

	set := func(present bool, which eventKind) {
		if present {
			k = which
			n++
		}
	}
	set(m.Join != nil, kindJoin)
	set(m.Leave != nil, kindLeave)
	set(m.GroupSubmit != nil, kindGroupSubmit)
	set(m.Register != nil, kindRegister)
	set(m.JoinPrivate != nil, kindJoinPrivate)
	set(m.DirectSubmit != nil, kindDirectSubmit)

	if n != 1 {
		return kindInvalid
	}
	return k
}

type ServerMessage struct {
	BaseMessage
	Response     *Response            `json:"response,omitempty"`
	History      *History             `json:"history,omitempty"`
	Message      *types.GroupMessage  `json:"message,omitempty"`
	Direct       *types.DirectMessage `json:"direct,omitempty"`
	Notification *types.Notification  `json:"notification,omitempty"`
}

type Response struct {
	ResponseCode int            `json:"response_code"`
	Error        string         `json:"error,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

type History struct {
	RoomId   string               `json:"room_id"`
	Messages []types.GroupMessage `json:"messages"`
}

func response(id, code int, errMsg string, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Error:        errMsg,
			Data:         data,
		},
	}
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return response(id, http.StatusOK, "", data)
}

func NoErrAccepted(id int, data map[string]any) *ServerMessage {
	return response(id, http.StatusAccepted, "", data)
}

func ErrBadRequest(id int, reason string) *ServerMessage {
	return response(id, http.StatusBadRequest, reason, nil)
}

func ErrForbidden(id int) *ServerMessage {
	return response(id, http.StatusForbidden, "forbidden", nil)
}

func ErrNotFoundMessage(id int) *ServerMessage {
	return response(id, http.StatusNotFound, "not found", nil)
}

func ErrInternalError(id int) *ServerMessage {
	return response(id, http.StatusInternalServerError, "internal server error", nil)
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return response(id, http.StatusServiceUnavailable, "service unavailable", nil)
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := response(0, http.StatusBadRequest, "invalid message format", nil)
	if id > 0 {
		msg.Id = id
	}
	return msg
}

func historyMessage(roomId string, msgs []database.GroupMessage) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		History: &History{
			RoomId:   roomId,
			Messages: GroupMessagesToAPI(msgs),
		},
	}
}

func groupMessageEvent(msg database.GroupMessage) *ServerMessage {
	m := GroupMessageToAPI(msg)
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Message:     &m,
	}
}

func directMessageEvent(conversationId string, msg database.ConversationMessage) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Direct: &types.DirectMessage{
			ConversationId: conversationId,
			SenderId:       msg.SenderId,
			Text:           msg.Text,
			SentAt:         msg.SentAt,
		},
	}
}

func notificationMessage(n types.Notification) *ServerMessage {
	return &ServerMessage{
		BaseMessage:  BaseMessage{Timestamp: Now()},
		Notification: &n,
	}
}

func GroupMessageToAPI(msg database.GroupMessage) types.GroupMessage {
	return types.GroupMessage{
		Id:         msg.Id,
		RoomId:     msg.RoomId,
		SenderId:   msg.SenderId,
		SenderName: msg.SenderName,
		Text:       msg.Text,
		SentAt:     msg.SentAt,
	}
}

func GroupMessagesToAPI(msgs []database.GroupMessage) []types.GroupMessage {
	out := make([]types.GroupMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, GroupMessageToAPI(m))
	}
	return out
}

func ConversationMessageToAPI(msg database.ConversationMessage) types.ConversationMessage {
	return types.ConversationMessage{
		SenderId: msg.SenderId,
		Text:     msg.Text,
		SentAt:   msg.SentAt,
	}
}

func ConversationToAPI(conv database.Conversation) types.Conversation {
	msgs := make([]types.ConversationMessage, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		msgs = append(msgs, ConversationMessageToAPI(m))
	}

	return types.Conversation{
		Id:           conv.Id,
		Participants: []string{conv.ParticipantA, conv.ParticipantB},
		CreatedAt:    conv.CreatedAt,
		Messages:     msgs,
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
