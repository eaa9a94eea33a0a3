// internal/types/models.go
package types

import (
	"fmt"
	"time"
)

// Credential is the bearer token held for the logged-in user together with
// the username it was issued for.
type Credential struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

type Identity struct {
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	UserID    uint      `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Transaction struct {
	Sender    string  `json:"sender"`
	Receiver  string  `json:"receiver"`
	Amount    float64 `json:"amount"`
	ImageHash string  `json:"image_hash"`
}

// Block is one ledger entry. PrevHash links it to the block at Index-1.
// Transactions may be nil when the ledger service sends null.
type Block struct {
	Index        int           `json:"index"`
	Timestamp    time.Time     `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	PrevHash     string        `json:"prev_hash"`
	Hash         string        `json:"hash"`
	Proof        string        `json:"proof"`
}

type Model struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	Hash      string    `json:"hash"`
}

// ModelDetail is a model plus the decoded reference images its owner trained on.
type ModelDetail struct {
	Model   Model
	Samples [][]byte
}

// ModelRef addresses a model by owner and name. It is the only way a model
// is routed to in this client.
type ModelRef struct {
	Owner string
	Name  string
}

func (r ModelRef) String() string {
	return r.Owner + "/" + r.Name
}

// Path is the generation view for the model.
func (r ModelRef) Path() string {
	return fmt.Sprintf("/generate/%s/%s", r.Owner, r.Name)
}

// BlockHash is the path-style reference the generator service embeds in its
// images and accepts on generate requests.
func (r ModelRef) BlockHash() string {
	return "/" + r.Owner + "/" + r.Name
}

type Match struct {
	BlockIndex int       `json:"block_index"`
	Timestamp  time.Time `json:"timestamp"`
}

type CheckResult struct {
	Trained bool    `json:"trained"`
	Matches []Match `json:"matches"`
}

type MineReceipt struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Hash      string    `json:"hash"`
	Proof     string    `json:"proof"`
}

// Handle is an opaque, explicitly released display reference to a copy of an
// artifact's bytes.
type Handle struct {
	ID  HandleID `json:"id"`
	Ref string   `json:"ref"`
}

// Artifact is one generated image within a batch.
type Artifact struct {
	ID       ArtifactID `json:"id"`
	Index    int        `json:"index"`
	Data     []byte     `json:"-"`
	MimeType string     `json:"mime_type"`
	Handle   Handle     `json:"handle"`
}

// ArtifactMeta describes an artifact persisted to disk by the user.
type ArtifactMeta struct {
	ID        ArtifactID `json:"id"`
	Model     string     `json:"model"`
	Index     int        `json:"index"`
	MimeType  string     `json:"mime_type"`
	Path      string     `json:"path"`
	CreatedAt time.Time  `json:"created_at"`
}
