// Package testutil runs an in-process stand-in for the ledger API and the
// image generator, for tests that drive the real HTTP client.
package testutil

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/user/pixledger/internal/types"
)

type account struct {
	email    string
	password string
	created  time.Time
}

// GenerateCall records the form fields of one generate request.
type GenerateCall struct {
	Username  string
	ModelName string
	BlockHash string
}

// Backend serves both services. Fields may be changed between requests;
// every handler takes the lock.
type Backend struct {
	API       *httptest.Server
	Generator *httptest.Server

	mu       sync.Mutex
	accounts map[string]account
	tokens   map[string]string
	chain    []types.Block
	models   []types.Model
	samples  map[string][]string
	trained  map[string][]types.Match

	failGenerateAt int
	blockHash      string

	generateCalls []GenerateCall
	inflight      int
	maxInflight   int
}

// NewBackend starts both servers; they are closed when the test ends.
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{
		accounts:       make(map[string]account),
		tokens:         make(map[string]string),
		samples:        make(map[string][]string),
		trained:        make(map[string][]types.Match),
		failGenerateAt: -1,
	}

	api := mux.NewRouter()
	api.HandleFunc("/auth/login", b.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/register", b.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/models", b.handleModels).Methods(http.MethodGet)
	protected := api.PathPrefix("/api").Subrouter()
	protected.Use(b.requireToken)
	protected.HandleFunc("/me", b.handleMe).Methods(http.MethodGet)
	protected.HandleFunc("/chain", b.handleChain).Methods(http.MethodGet)
	protected.HandleFunc("/model", b.handleModel).Methods(http.MethodPost)
	protected.HandleFunc("/mine", b.handleMine).Methods(http.MethodPost)
	protected.HandleFunc("/check-image", b.handleCheckImage).Methods(http.MethodPost)

	gen := mux.NewRouter()
	gen.HandleFunc("/generate", b.handleGenerate).Methods(http.MethodPost)
	gen.Handle("/extract", b.requireToken(http.HandlerFunc(b.handleExtract))).Methods(http.MethodPost)

	b.API = httptest.NewServer(api)
	b.Generator = httptest.NewServer(gen)
	t.Cleanup(func() {
		b.API.Close()
		b.Generator.Close()
	})
	return b
}

// AddUser registers an account directly.
func (b *Backend) AddUser(username, email, password string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[username] = account{email: email, password: password, created: time.Now().UTC()}
}

// TokenFor returns the token login would issue to username.
func (b *Backend) TokenFor(username string) string {
	return "tok-" + username
}

// SetChain replaces the ledger.
func (b *Backend) SetChain(chain []types.Block) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chain = chain
}

// AddModel publishes a model with raw sample images.
func (b *Backend) AddModel(m types.Model, samples ...[]byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.models = append(b.models, m)
	encoded := make([]string, len(samples))
	for i, s := range samples {
		encoded[i] = base64.StdEncoding.EncodeToString(s)
	}
	b.samples[m.CreatedBy+"/"+m.Name] = encoded
}

// MarkTrained makes check-image report image as used in the given blocks.
func (b *Backend) MarkTrained(image []byte, matches ...types.Match) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trained[digest(image)] = matches
}

// FailGenerate makes the generate request with 0-based call number n fail
// with an HTML 500 page. Negative disables it.
func (b *Backend) FailGenerate(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failGenerateAt = n
}

// SetBlockHash sets the /extract answer. Empty makes /extract answer 404.
func (b *Backend) SetBlockHash(hash string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blockHash = hash
}

// GenerateCalls returns the generate requests seen so far.
func (b *Backend) GenerateCalls() []GenerateCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]GenerateCall(nil), b.generateCalls...)
}

// MaxConcurrentGenerates is the highest number of generate requests that
// were ever served at the same time.
func (b *Backend) MaxConcurrentGenerates() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxInflight
}

// Chain returns the current ledger.
func (b *Backend) Chain() []types.Block {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]types.Block(nil), b.chain...)
}

// ImageFor is the body generate returns for call n.
func ImageFor(n int) []byte {
	return []byte(fmt.Sprintf("\x89PNG\r\n\x1a\nimage-%d", n))
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (b *Backend) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}
		b.mu.Lock()
		_, known := b.tokens[token]
		b.mu.Unlock()
		if !known {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) userOf(r *http.Request) string {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens[token]
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	b.mu.Lock()
	acct, ok := b.accounts[req.Username]
	if ok && acct.password == req.Password {
		b.tokens[b.TokenFor(req.Username)] = req.Username
	}
	b.mu.Unlock()
	if !ok || acct.password != req.Password {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": b.TokenFor(req.Username)})
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	b.mu.Lock()
	_, exists := b.accounts[req.Username]
	if !exists {
		b.accounts[req.Username] = account{email: req.Email, password: req.Password, created: time.Now().UTC()}
	}
	b.mu.Unlock()
	if exists {
		writeError(w, http.StatusConflict, "Username already exists")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request) {
	username := b.userOf(r)
	b.mu.Lock()
	acct := b.accounts[username]
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"username":   username,
		"email":      acct.email,
		"user_id":    1,
		"created_at": acct.created,
	})
}

func (b *Backend) handleChain(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"chain": b.Chain()})
}

func (b *Backend) handleModels(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	models := append([]types.Model{}, b.models...)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

func (b *Backend) handleModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username  string `json:"username"`
		ModelName string `json:"model_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.models {
		if m.CreatedBy == req.Username && m.Name == req.ModelName {
			writeJSON(w, http.StatusOK, map[string]any{
				"model":         m,
				"sample_images": b.samples[m.CreatedBy+"/"+m.Name],
			})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Model not found")
}

func (b *Backend) handleMine(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form")
		return
	}
	epochs, err := strconv.Atoi(r.FormValue("epochs"))
	name := r.FormValue("model_name")
	files := r.MultipartForm.File["images"]
	if err != nil || epochs < 1 || name == "" || len(files) == 0 {
		writeError(w, http.StatusBadRequest, "epochs, model_name and images are required")
		return
	}

	username := b.userOf(r)
	var txs []types.Transaction
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid image")
			return
		}
		data, _ := io.ReadAll(f)
		f.Close()
		txs = append(txs, types.Transaction{Sender: username, Receiver: name, Amount: float64(epochs), ImageHash: digest(data)})
	}

	b.mu.Lock()
	prev := ""
	if n := len(b.chain); n > 0 {
		prev = b.chain[n-1].Hash
	}
	block := types.Block{
		Index:        len(b.chain),
		Timestamp:    time.Now().UTC(),
		Transactions: txs,
		PrevHash:     prev,
		Hash:         digest([]byte(fmt.Sprintf("%s|%d|%s", prev, len(b.chain), name))),
		Proof:        strconv.Itoa(len(b.chain) * 7),
	}
	b.chain = append(b.chain, block)
	b.models = append(b.models, types.Model{ID: uint(len(b.models) + 1), Name: name, CreatedBy: username, CreatedAt: block.Timestamp, Hash: block.Hash})
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"index":     block.Index,
		"timestamp": block.Timestamp,
		"hash":      block.Hash,
		"proof":     block.Proof,
	})
}

func readImage(r *http.Request) ([]byte, error) {
	f, _, err := r.FormFile("image")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (b *Backend) handleCheckImage(w http.ResponseWriter, r *http.Request) {
	data, err := readImage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Image is required")
		return
	}
	b.mu.Lock()
	matches, ok := b.trained[digest(data)]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"trained": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trained": true, "matches": matches})
}

func (b *Backend) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form")
		return
	}
	call := GenerateCall{
		Username:  r.FormValue("username"),
		ModelName: r.FormValue("model_name"),
		BlockHash: r.FormValue("block_hash"),
	}

	b.mu.Lock()
	n := len(b.generateCalls)
	b.generateCalls = append(b.generateCalls, call)
	b.inflight++
	if b.inflight > b.maxInflight {
		b.maxInflight = b.inflight
	}
	fail := n == b.failGenerateAt
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.inflight--
		b.mu.Unlock()
	}()

	// Give overlapping requests a chance to show up.
	time.Sleep(time.Millisecond)

	if fail {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "<html><body><h1>Internal Server Error</h1><p>generation failed</p></body></html>")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(ImageFor(n))
}

func (b *Backend) handleExtract(w http.ResponseWriter, r *http.Request) {
	if _, err := readImage(r); err != nil {
		writeError(w, http.StatusBadRequest, "Image is required")
		return
	}
	b.mu.Lock()
	hash := b.blockHash
	b.mu.Unlock()
	if hash == "" {
		writeError(w, http.StatusNotFound, "No model reference found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"block_hash": hash})
}

// LinkedChain builds n hash-linked blocks; block i carries i*perBlock
// transactions.
func LinkedChain(n, perBlock int) []types.Block {
	chain := make([]types.Block, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range chain {
		prev := ""
		if i > 0 {
			prev = chain[i-1].Hash
		}
		var txs []types.Transaction
		for j := 0; j < i*perBlock; j++ {
			txs = append(txs, types.Transaction{
				Sender:    "alice",
				Receiver:  "cats",
				Amount:    1,
				ImageHash: fmt.Sprintf("img-%d-%d", i, j),
			})
		}
		chain[i] = types.Block{
			Index:        i,
			Timestamp:    start.Add(time.Duration(i) * time.Hour),
			Transactions: txs,
			PrevHash:     prev,
			Hash:         digest([]byte(fmt.Sprintf("%s|%d", prev, i))),
			Proof:        strconv.Itoa(i),
		}
	}
	return chain
}

// WriteFile writes content into dir/name and returns the path.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}
