package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listmyspace/server/internal/models"
)

func dialChat(t *testing.T, srv *httptest.Server, userID uint, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := fmt.Sprintf("ws%s/api/chat/%d?token=%s", strings.TrimPrefix(srv.URL, "http"), userID, token)
	return websocket.DefaultDialer.Dial(url, nil)
}

func TestChatOverWebSocket(t *testing.T) {
	fx := newAPIFixture(t)
	owner, ownerToken := fx.account("olga", models.RoleOwner)
	carl, carlToken := fx.account("carl", models.RoleCustomer)

	srv := httptest.NewServer(fx.router)
	defer srv.Close()

	_, resp, err := dialChat(t, srv, owner.ID, carlToken)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "the path must name the caller")

	ownerConn, _, err := dialChat(t, srv, owner.ID, ownerToken)
	require.NoError(t, err)
	defer ownerConn.Close()
	carlConn, _, err := dialChat(t, srv, carl.ID, carlToken)
	require.NoError(t, err)
	defer carlConn.Close()

	require.Eventually(t, func() bool { return fx.registry.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, carlConn.WriteJSON(map[string]interface{}{"to": owner.ID, "text": "Can I visit tomorrow?"}))

	var delivered map[string]interface{}
	require.NoError(t, ownerConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, ownerConn.ReadJSON(&delivered))
	assert.Equal(t, float64(carl.ID), delivered["from"])
	assert.Equal(t, "Can I visit tomorrow?", delivered["text"])
	assert.NotEmpty(t, delivered["timestamp"])

	require.NoError(t, carlConn.WriteJSON(map[string]interface{}{"to": 9999, "text": "hello?"}))
	var reply map[string]interface{}
	require.NoError(t, carlConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, carlConn.ReadJSON(&reply))
	assert.Equal(t, "Recipient not found", reply["error"])

	rec := fx.do(http.MethodGet, fmt.Sprintf("/api/messages/%d", carl.ID), nil, ownerToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	messages := decode(t, rec)["messages"].([]interface{})
	require.Len(t, messages, 1)
	assert.Equal(t, "customer", messages[0].(map[string]interface{})["sender_type"])
}

func TestMessageHistory(t *testing.T) {
	fx := newAPIFixture(t)
	owner, ownerToken := fx.account("olga", models.RoleOwner)
	carl, carlToken := fx.account("carl", models.RoleCustomer)
	cora, _ := fx.account("cora", models.RoleCustomer)

	ctx := context.Background()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, sender := range []models.Role{models.RoleCustomer, models.RoleOwner, models.RoleCustomer} {
		require.NoError(t, fx.db.SaveMessage(ctx, &models.Message{
			CustomerID: &carl.Customer.ID,
			OwnerID:    &owner.Owner.ID,
			SenderType: sender,
			Content:    fmt.Sprintf("line %d", i),
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	rec := fx.do(http.MethodGet, fmt.Sprintf("/api/messages/%d?limit=2", owner.ID), nil, carlToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	messages := decode(t, rec)["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Equal(t, "line 1", messages[0].(map[string]interface{})["content"])
	assert.Equal(t, "line 2", messages[1].(map[string]interface{})["content"])

	rec = fx.do(http.MethodGet, fmt.Sprintf("/api/messages/%d", carl.ID), nil, ownerToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["messages"], 3)

	assert.Equal(t, http.StatusBadRequest, fx.do(http.MethodGet, fmt.Sprintf("/api/messages/%d", cora.ID), nil, carlToken).Code)
	assert.Equal(t, http.StatusBadRequest, fx.do(http.MethodGet, fmt.Sprintf("/api/messages/%d?limit=0", owner.ID), nil, carlToken).Code)
	assert.Equal(t, http.StatusNotFound, fx.do(http.MethodGet, "/api/messages/9999", nil, carlToken).Code)
}
