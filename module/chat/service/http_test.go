package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"
	"time"

	authmw "RentChat/middleware/security"
	"RentChat/module/chat/store"
	"RentChat/service/chat"
	"RentChat/service/media"
	toolsec "RentChat/tools/security"

	"github.com/gin-gonic/gin"
)

type apiFixture struct {
	store    *store.MemoryStore
	pipe     *chat.Pipeline
	presence *chat.PresenceTracker
	router   *gin.Engine
	auth     toolsec.Options
	mediaDir string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemoryStore()
	mgr := chat.NewConnManager(chat.ManagerConf{SweepEvery: time.Hour})
	t.Cleanup(mgr.Close)
	rooms := chat.NewRoomDispatcher(st, mgr)
	pipe := chat.NewPipeline(st, rooms, nil)
	presence := chat.NewPresenceTracker(mgr)

	mediaDir := t.TempDir()
	objects, err := media.NewLocalStore(mediaDir, "/media")
	if err != nil {
		t.Fatalf("local store: %v", err)
	}

	auth := toolsec.DefaultOptions([]byte("test-secret"))
	api := &API{
		Store:         st,
		Pipeline:      pipe,
		Presence:      presence,
		Objects:       objects,
		MaxUpload:     1 << 20,
		UploadTimeout: 10 * time.Second,
	}
	r := gin.New()
	api.Register(r.Group("/api", authmw.BearerAuth(auth)))

	return &apiFixture{store: st, pipe: pipe, presence: presence, router: r, auth: auth, mediaDir: mediaDir}
}

func (fx *apiFixture) do(t *testing.T, method, path, user string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if user != "" {
		token, _, err := toolsec.Generate(fx.auth, user)
		if err != nil {
			t.Fatalf("token for %s: %v", user, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	return w
}

func TestListConversationsRequiresAuth(t *testing.T) {
	fx := newAPIFixture(t)
	if w := fx.do(t, http.MethodGet, "/api/conversations", "", nil, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestListConversations(t *testing.T) {
	fx := newAPIFixture(t)
	ctx := context.Background()
	if _, err := fx.store.GetOrCreate(ctx, "alice", "bob"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := fx.do(t, http.MethodGet, "/api/conversations", "alice", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body)
	}
	var resp struct {
		Conversations []json.RawMessage `json:"conversations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Conversations) != 1 {
		t.Fatalf("got %d conversations", len(resp.Conversations))
	}
}

func TestHistoryForbiddenForOutsider(t *testing.T) {
	fx := newAPIFixture(t)
	ctx := context.Background()
	conv, _ := fx.store.GetOrCreate(ctx, "alice", "bob")

	w := fx.do(t, http.MethodGet, "/api/conversations/"+conv.ID+"/messages", "mallory", nil, "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestHistoryPaging(t *testing.T) {
	fx := newAPIFixture(t)
	ctx := context.Background()
	conv, _ := fx.store.GetOrCreate(ctx, "alice", "bob")
	for i := 0; i < 3; i++ {
		if _, err := fx.pipe.Send(ctx, "alice", chat.SendRequest{ConversationID: conv.ID, Text: fmt.Sprintf("m%d", i)}); err != nil {
			t.Fatalf("seed send: %v", err)
		}
	}

	w := fx.do(t, http.MethodGet, "/api/conversations/"+conv.ID+"/messages?limit=2", "bob", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body)
	}
	var resp struct {
		Messages []struct {
			Text string `json:"text"`
			Ts   int64  `json:"ts"`
			Seq  int64  `json:"seq"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Messages) != 2 || resp.Messages[0].Text != "m2" {
		t.Fatalf("page = %+v", resp.Messages)
	}

	// follow the composite cursor; the three sends may share one ts under a
	// coarse clock and the next page must still hold exactly the remainder
	last := resp.Messages[1]
	next := fmt.Sprintf("/api/conversations/%s/messages?limit=2&before=%d&before_seq=%d", conv.ID, last.Ts, last.Seq)
	w = fx.do(t, http.MethodGet, next, "bob", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Messages) != 1 || resp.Messages[0].Text != "m0" {
		t.Fatalf("second page = %+v", resp.Messages)
	}
}

func TestMarkReadEndpoint(t *testing.T) {
	fx := newAPIFixture(t)
	ctx := context.Background()
	msg, err := fx.pipe.Send(ctx, "alice", chat.SendRequest{PeerID: "bob", Text: "hi"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := fx.do(t, http.MethodPost, "/api/conversations/"+msg.ConversationID+"/read", "bob", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body)
	}
	conv, _ := fx.store.Get(ctx, msg.ConversationID)
	if conv.Unread["bob"] != 0 {
		t.Fatalf("unread = %d", conv.Unread["bob"])
	}
}

func multipartFile(t *testing.T, field, name, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return buf, mw.FormDataContentType()
}

func TestAttachMedia(t *testing.T) {
	fx := newAPIFixture(t)
	ctx := context.Background()
	conv, _ := fx.store.GetOrCreate(ctx, "alice", "bob")

	body, ct := multipartFile(t, "file", "photo.png", "image/png", []byte("not-a-real-png"))
	w := fx.do(t, http.MethodPost, "/api/conversations/"+conv.ID+"/media", "alice", body, ct)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body)
	}
	var resp struct {
		Message struct {
			Attachment struct {
				URL  string `json:"url"`
				Kind string `json:"kind"`
			} `json:"attachment"`
		} `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message.Attachment.Kind != "image" || resp.Message.Attachment.URL == "" {
		t.Fatalf("attachment = %+v", resp.Message.Attachment)
	}

	// the attachment message is a regular persisted message
	conv2, _ := fx.store.Get(ctx, conv.ID)
	if conv2.Unread["bob"] != 1 {
		t.Fatalf("unread = %d", conv2.Unread["bob"])
	}
}

func TestAttachMediaForbiddenBeforeStoringAnything(t *testing.T) {
	fx := newAPIFixture(t)
	ctx := context.Background()
	conv, _ := fx.store.GetOrCreate(ctx, "alice", "bob")

	body, ct := multipartFile(t, "file", "photo.png", "image/png", []byte("blob"))
	w := fx.do(t, http.MethodPost, "/api/conversations/"+conv.ID+"/media", "mallory", body, ct)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	// the rejected upload must not have parked a binary in the store
	entries, err := os.ReadDir(fx.mediaDir)
	if err != nil {
		t.Fatalf("read media dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected upload left %d objects behind", len(entries))
	}
	ts, seq, _ := fx.store.LastOrdering(ctx, conv.ID)
	if ts != 0 || seq != 0 {
		t.Fatal("rejected upload produced a message")
	}
}

func TestAttachMediaRejectsUnsupportedType(t *testing.T) {
	fx := newAPIFixture(t)
	ctx := context.Background()
	conv, _ := fx.store.GetOrCreate(ctx, "alice", "bob")

	body, ct := multipartFile(t, "file", "doc.pdf", "application/pdf", []byte("%PDF"))
	w := fx.do(t, http.MethodPost, "/api/conversations/"+conv.ID+"/media", "alice", body, ct)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	// nothing persisted
	ts, seq, _ := fx.store.LastOrdering(ctx, conv.ID)
	if ts != 0 || seq != 0 {
		t.Fatal("rejected upload produced a message")
	}
}

func TestPresenceEndpoint(t *testing.T) {
	fx := newAPIFixture(t)
	fx.presence.OnConnectionDelta("bob", +1)

	var resp struct {
		UserID string `json:"user_id"`
		Online bool   `json:"online"`
	}
	w := fx.do(t, http.MethodGet, "/api/presence/bob", "alice", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Online || resp.UserID != "bob" {
		t.Fatalf("resp = %+v", resp)
	}

	w = fx.do(t, http.MethodGet, "/api/presence/carol", "alice", nil, "")
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Online {
		t.Fatal("offline user reported online")
	}
}

func TestAttachMediaSizeCeiling(t *testing.T) {
	fx := newAPIFixture(t)
	ctx := context.Background()
	conv, _ := fx.store.GetOrCreate(ctx, "alice", "bob")

	big := make([]byte, 2<<20) // over the 1 MiB fixture ceiling
	body, ct := multipartFile(t, "file", "big.png", "image/png", big)
	w := fx.do(t, http.MethodPost, "/api/conversations/"+conv.ID+"/media", "alice", body, ct)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", w.Code)
	}
}
