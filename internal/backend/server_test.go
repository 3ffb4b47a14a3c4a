package backend_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/obraviva/site-chat/internal/backend"
	"github.com/obraviva/site-chat/internal/backend/backendtest"
	"github.com/obraviva/site-chat/internal/domain"
	"github.com/obraviva/site-chat/pkg/response"
)

// ====== REST ======

func doJSON(t *testing.T, method, url, token string, body interface{}) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func TestRESTRequiresAuth(t *testing.T) {
	env := backendtest.New(t)
	status, body := doJSON(t, http.MethodGet, env.APIURL+"/chats", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	err := response.Decode(body, nil)
	var info *response.ErrorInfo
	require.ErrorAs(t, err, &info)
	require.Equal(t, "UNAUTHORIZED", info.Code)
}

func TestRESTHistoryAndErrors(t *testing.T) {
	env := backendtest.New(t)
	token := env.Token(t, backend.SeedClientID, domain.RoleClient)

	status, body := doJSON(t, http.MethodGet, env.APIURL+"/chats/C1/messages", token, nil)
	require.Equal(t, http.StatusOK, status)
	var hist struct {
		Chat     domain.ChatSession `json:"chat"`
		Messages []domain.Message   `json:"messages"`
	}
	require.NoError(t, response.Decode(body, &hist))
	require.Equal(t, "C1", hist.Chat.ID)
	require.Len(t, hist.Messages, 1)

	status, _ = doJSON(t, http.MethodGet, env.APIURL+"/chats/C404/messages", token, nil)
	require.Equal(t, http.StatusNotFound, status)

	status, _ = doJSON(t, http.MethodGet, env.APIURL+"/chats/C2/messages", token, nil)
	require.Equal(t, http.StatusForbidden, status)
}

func TestRESTSendAndMarkRead(t *testing.T) {
	env := backendtest.New(t)
	manager := env.Token(t, backend.SeedManagerID, domain.RoleManager)
	client := env.Token(t, backend.SeedClientID, domain.RoleClient)

	status, body := doJSON(t, http.MethodPost, env.APIURL+"/chats/C1/messages", manager, map[string]string{"body": "¿cómo va?"})
	require.Equal(t, http.StatusCreated, status)
	var sent struct {
		Message domain.Message `json:"message"`
	}
	require.NoError(t, response.Decode(body, &sent))
	require.Equal(t, domain.MessageID(2), sent.Message.ID)

	status, _ = doJSON(t, http.MethodPost, env.APIURL+"/chats/C1/messages", manager, map[string]string{"body": "  "})
	require.Equal(t, http.StatusBadRequest, status)

	status, body = doJSON(t, http.MethodPost, env.APIURL+"/chats/C1/read", client, nil)
	require.Equal(t, http.StatusOK, status)
	var read struct {
		Updated int `json:"updated"`
	}
	require.NoError(t, response.Decode(body, &read))
	require.Equal(t, 2, read.Updated)

	status, body = doJSON(t, http.MethodPost, env.APIURL+"/chats/C1/read", client, map[string]int{"message_id": 2})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, response.Decode(body, &read))
	require.Zero(t, read.Updated)
	require.Equal(t, 2, env.Server.Service().MarkReadCalls("C1"))
}

func TestRESTDevToken(t *testing.T) {
	env := backendtest.New(t)

	status, body := doJSON(t, http.MethodPost, env.APIURL+"/dev/token", "", map[string]string{"user_id": "U1", "role": "client"})
	require.Equal(t, http.StatusOK, status)
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, response.Decode(body, &out))

	claims, err := env.Server.Tokens().Validate(out.Token)
	require.NoError(t, err)
	require.Equal(t, "U1", claims.UserID)

	status, _ = doJSON(t, http.MethodPost, env.APIURL+"/dev/token", "", map[string]string{"user_id": "U1", "role": "guest"})
	require.Equal(t, http.StatusBadRequest, status)
}

// ====== WEBSOCKET ======

func dial(t *testing.T, env *backendtest.Env) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(env.WSURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]interface{}
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func join(t *testing.T, env *backendtest.Env, userID string, role domain.Role) *websocket.Conn {
	t.Helper()
	conn := dial(t, env)
	require.NoError(t, conn.WriteJSON(domain.AuthMessage{Type: domain.MsgTypeAuth, Token: env.Token(t, userID, role)}))
	require.Equal(t, true, readFrame(t, conn)["success"])
	require.NoError(t, conn.WriteJSON(domain.JoinChatMessage{Type: domain.MsgTypeJoinChat, ChatID: "C1"}))
	require.Equal(t, domain.MsgTypeChatJoined, readFrame(t, conn)["type"])
	return conn
}

func TestWSAuthRejected(t *testing.T) {
	env := backendtest.New(t)
	conn := dial(t, env)

	require.NoError(t, conn.WriteJSON(domain.AuthMessage{Type: domain.MsgTypeAuth, Token: "garbage"}))
	frame := readFrame(t, conn)
	require.Equal(t, domain.MsgTypeAuthResult, frame["type"])
	require.Equal(t, false, frame["success"])
}

func TestWSJoinRequiresMembership(t *testing.T) {
	env := backendtest.New(t)
	conn := dial(t, env)

	require.NoError(t, conn.WriteJSON(domain.AuthMessage{Type: domain.MsgTypeAuth, Token: env.Token(t, "U3", domain.RoleClient)}))
	readFrame(t, conn)
	require.NoError(t, conn.WriteJSON(domain.JoinChatMessage{Type: domain.MsgTypeJoinChat, ChatID: "C1"}))

	frame := readFrame(t, conn)
	require.Equal(t, domain.MsgTypeError, frame["type"])
	require.Equal(t, domain.ErrCodeForbidden, frame["code"])
}

func TestWSFanOut(t *testing.T) {
	env := backendtest.New(t)
	client := join(t, env, backend.SeedClientID, domain.RoleClient)
	manager := join(t, env, backend.SeedManagerID, domain.RoleManager)

	// typing is relayed to the other side only
	require.NoError(t, manager.WriteJSON(domain.TypingMessage{Type: domain.MsgTypeTypingStart, ChatID: "C1"}))
	frame := readFrame(t, client)
	require.Equal(t, domain.MsgTypeTypingStart, frame["type"])
	require.Equal(t, backend.SeedManagerID, frame["user_id"])

	// a REST send is pushed to both sockets
	status, _ := doJSON(t, http.MethodPost, env.APIURL+"/chats/C1/messages",
		env.Token(t, backend.SeedManagerID, domain.RoleManager), map[string]string{"body": "¿cómo va?"})
	require.Equal(t, http.StatusCreated, status)

	for _, conn := range []*websocket.Conn{client, manager} {
		frame := readFrame(t, conn)
		require.Equal(t, domain.MsgTypeNewMessage, frame["type"])
		msg := frame["message"].(map[string]interface{})
		require.Equal(t, "¿cómo va?", msg["body"])
	}

	require.NoError(t, client.WriteJSON(domain.ReadReceiptMessage{Type: domain.MsgTypeReadReceipt, ChatID: "C1", MessageID: 2}))
	frame = readFrame(t, manager)
	require.Equal(t, domain.MsgTypeReadReceipt, frame["type"])
	require.Equal(t, float64(2), frame["message_id"])
}

func TestWSPing(t *testing.T) {
	env := backendtest.New(t)
	conn := dial(t, env)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": domain.MsgTypePing}))
	require.Equal(t, domain.MsgTypePong, readFrame(t, conn)["type"])
}
