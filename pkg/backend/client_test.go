package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/pixledger/internal/types"
)

type staticToken string

func (s staticToken) Token() (string, bool) { return string(s), s != "" }

func newTestClient(url string, token string) *Client {
	return New(&Config{APIURL: url, GeneratorURL: url}, staticToken(token))
}

func TestLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" {
			t.Errorf("expected path /auth/login, got %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("login must not send an Authorization header")
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}

		body, _ := io.ReadAll(r.Body)
		var req map[string]string
		json.Unmarshal(body, &req)
		if req["username"] != "alice" || req["password"] != "pw" {
			t.Errorf("unexpected body: %v", req)
		}
		json.NewEncoder(w).Encode(map[string]string{"token": "t1"})
	}))
	defer server.Close()

	token, err := newTestClient(server.URL, "").Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "t1", token)
}

func TestLoginRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "Invalid credentials"})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, "").Login(context.Background(), "alice", "bad")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, "Invalid credentials", Message(err))
}

func TestAuthenticatedCallWithoutToken(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	ctx := context.Background()

	_, err := client.FetchChain(ctx)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = client.Me(ctx)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = client.CheckImage(ctx, []byte("img"), "a.png")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = client.ExtractBlockHash(ctx, []byte("img"), "a.png")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, _, err = client.ModelDetail(ctx, "alice", "cats")
	assert.ErrorIs(t, err, ErrUnauthorized)

	assert.Equal(t, int32(0), hits.Load(), "no request may be sent without a credential")
	assert.Equal(t, "Unauthorized. Please log in.", Message(err))
}

func TestFetchChain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer t1" {
			t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"chain":[
			{"index":0,"timestamp":"2024-01-01T00:00:00Z","transactions":null,"prev_hash":"","hash":"h0","proof":"p0"},
			{"index":1,"timestamp":"2024-01-02T00:00:00Z","transactions":[{"sender":"a","receiver":"b","amount":1,"image_hash":"x"}],"prev_hash":"h0","hash":"h1","proof":"p1"}
		]}`))
	}))
	defer server.Close()

	chain, err := newTestClient(server.URL, "t1").FetchChain(context.Background())
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, chain[0].Hash, chain[1].PrevHash)
	assert.Equal(t, "x", chain[1].Transactions[0].ImageHash)
}

func TestServerErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        string
	}{
		{"json error", "application/json", `{"error":"Model not found"}`, "Model not found"},
		{"html page", "text/html", `<html><body><h1>Internal Server Error</h1></body></html>`, "Internal Server Error"},
		{"plain text", "text/plain", "  upstream   exploded \n", "upstream exploded"},
		{"empty", "text/plain", "", GenericMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL, "").ListModels(context.Background())
			var fe *FetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, http.StatusInternalServerError, fe.Status)
			assert.Contains(t, Message(err), tt.want)
		})
	}
}

func TestNetworkFailureIsFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(url, "").ListModels(context.Background())
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.NotNil(t, fe.Err)
	assert.Equal(t, GenericMessage, Message(err))
}

func TestGenerateForm(t *testing.T) {
	for _, withHash := range []bool{true, false} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/generate" {
				t.Errorf("expected path /generate, got %q", r.URL.Path)
			}
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Error(err)
				return
			}
			assert.Equal(t, "alice", r.FormValue("username"))
			assert.Equal(t, "cats", r.FormValue("model_name"))
			_, present := r.MultipartForm.Value["block_hash"]
			assert.Equal(t, withHash, present)
			if withHash {
				assert.Equal(t, "/alice/cats", r.FormValue("block_hash"))
			}
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("\x89PNG\r\n\x1a\nfake"))
		}))

		data, mt, err := newTestClient(server.URL, "").Generate(context.Background(), types.ModelRef{Owner: "alice", Name: "cats"}, withHash)
		require.NoError(t, err)
		assert.Equal(t, "image/png", mt)
		assert.True(t, strings.HasPrefix(string(data), "\x89PNG"))
		server.Close()
	}
}

func TestCheckImageNotTrained(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		assert.Equal(t, "probe.png", header.Filename)
		w.Write([]byte(`{"trained":false}`))
	}))
	defer server.Close()

	result, err := newTestClient(server.URL, "t1").CheckImage(context.Background(), []byte("img"), "probe.png")
	require.NoError(t, err)
	assert.False(t, result.Trained)
	assert.NotNil(t, result.Matches)
	assert.Empty(t, result.Matches)
}

func TestMineForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "10", r.FormValue("epochs"))
		assert.Equal(t, "cats", r.FormValue("model_name"))
		assert.Len(t, r.MultipartForm.File["images"], 2)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"index":3,"timestamp":"2024-01-01T00:00:00Z","hash":"h3","proof":"p3"}`))
	}))
	defer server.Close()

	receipt, err := newTestClient(server.URL, "t1").Mine(context.Background(), "cats", 10, []types.NamedImage{
		{Name: "a.png", Data: []byte("a")},
		{Name: "b.png", Data: []byte("b")},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, receipt.Index)
	assert.Equal(t, "h3", receipt.Hash)
}

func TestMalformedJSONIsValidationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chain":`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, "t1").FetchChain(context.Background())
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}
