package infrastructure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhatsAppCloudSend(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v21.0/12345/messages", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"messaging_product":"whatsapp","messages":[{"id":"wamid.ABC"}]}`))
	}))
	defer srv.Close()

	c := NewWhatsAppCloudClient("tok", "12345", "v21.0", time.Second)
	c.BaseURL = srv.URL
	id, err := c.SendMessage(context.Background(), "5491122334455", "Hola")
	require.NoError(t, err)
	assert.Equal(t, "wamid.ABC", id)
	assert.Equal(t, "5491122334455", got["to"])
	assert.Equal(t, "Hola", got["text"].(map[string]any)["body"])
}

func TestWhatsAppCloudSendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid parameter","code":100}}`))
	}))
	defer srv.Close()

	c := NewWhatsAppCloudClient("tok", "12345", "v21.0", time.Second)
	c.BaseURL = srv.URL
	_, err := c.SendMessage(context.Background(), "1", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid parameter")
}

func TestWhatsAppCloudSendTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewWhatsAppCloudClient("tok", "12345", "v21.0", 20*time.Millisecond)
	c.BaseURL = srv.URL
	_, err := c.SendMessage(context.Background(), "1", "x")
	require.Error(t, err)
}

func TestWhatsAppCloudNotConfigured(t *testing.T) {
	c := NewWhatsAppCloudClient("", "", "v21.0", 0)
	_, err := c.SendMessage(context.Background(), "1", "x")
	assert.Error(t, err)
}

func TestEvolutionSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/message/sendText/tienda", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("apikey"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "5491100000000", body["number"])
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"key":{"id":"3EB0ABC"}}`))
	}))
	defer srv.Close()

	c := NewEvolutionClient(srv.URL+"/", "secret", "tienda", time.Second)
	id, err := c.SendMessage(context.Background(), "5491100000000", "Hola")
	require.NoError(t, err)
	assert.Equal(t, "3EB0ABC", id)
}
