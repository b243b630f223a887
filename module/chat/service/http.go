package service

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"RentChat/logger"
	"RentChat/middleware/security"
	"RentChat/module/chat/model"
	"RentChat/module/chat/store"
	"RentChat/service/chat"
	"RentChat/service/media"
	"RentChat/service/storage"
	"RentChat/tools/errs"

	"github.com/gin-gonic/gin"
)

const defaultHistoryLimit = 50

// API is the authenticated HTTP surface next to the websocket channel:
// conversation listing, history paging, read marking and the media attach
// path.
type API struct {
	Store         store.ConversationStore
	Pipeline      *chat.Pipeline
	Presence      *chat.PresenceTracker
	Objects       media.ObjectStore
	MaxUpload     int64
	UploadTimeout time.Duration
}

func (a *API) Register(g *gin.RouterGroup) {
	g.GET("/conversations", a.listConversations)
	g.GET("/conversations/:id/messages", a.history)
	g.POST("/conversations/:id/read", a.markRead)
	g.POST("/conversations/:id/media", a.attachMedia)
	g.GET("/presence/:user", a.presence)
}

func (a *API) listConversations(c *gin.Context) {
	user := security.UserID(c)
	convs, err := a.Store.ListByUser(c.Request.Context(), user)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

func (a *API) history(c *gin.Context) {
	user := security.UserID(c)
	convID := c.Param("id")

	conv, err := a.Store.Get(c.Request.Context(), convID)
	if err != nil {
		abortWith(c, err)
		return
	}
	if !conv.HasParticipant(user) {
		abortWith(c, errs.ErrAuthorization.WithDetail("not a participant of "+convID))
		return
	}

	// the cursor is the (ts, seq) of the last message on the previous page
	before, _ := strconv.ParseInt(c.Query("before"), 10, 64)
	beforeSeq, _ := strconv.ParseInt(c.Query("before_seq"), 10, 64)
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)), 10, 64)
	if limit <= 0 || limit > 200 {
		limit = defaultHistoryLimit
	}

	msgs, err := a.Store.History(c.Request.Context(), convID, before, beforeSeq, limit)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (a *API) markRead(c *gin.Context) {
	user := security.UserID(c)
	if err := a.Pipeline.MarkRead(c.Request.Context(), user, c.Param("id")); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// attachMedia runs the two-phase attach path: the binary goes to the
// object store first (bounded by its own timeout, never holding any
// conversation lock), and only the resulting URL enters the delivery
// pipeline as a regular message.
func (a *API) attachMedia(c *gin.Context) {
	user := security.UserID(c)
	convID := c.Param("id")

	// authorize before touching the binary: a non-participant must not be
	// able to park blobs in the object store
	conv, err := a.Store.Get(c.Request.Context(), convID)
	if err != nil {
		abortWith(c, err)
		return
	}
	if !conv.HasParticipant(user) {
		abortWith(c, errs.ErrAuthorization.WithDetail("not a participant of "+convID))
		return
	}

	if c.Request.ContentLength > a.MaxUpload {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, a.MaxUpload)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		abortWith(c, errs.ErrValidation.WithDetail("missing file field"))
		return
	}
	defer func() { _ = file.Close() }()

	contentType := header.Header.Get("Content-Type")
	kind, err := media.Kind(contentType)
	if err != nil {
		abortWith(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), a.UploadTimeout)
	defer cancel()

	key := media.ObjectKey(contentType)
	url, err := a.Objects.Put(ctx, key, file, contentType)
	if err != nil {
		logger.Warnf("[media] upload failed user=%s conv=%s: %v", user, convID, err)
		abortWith(c, errs.ErrInternal.WithDetail("upload failed"))
		return
	}

	msg, err := a.Pipeline.Send(ctx, user, chat.SendRequest{
		ConversationID: convID,
		Text:           c.PostForm("caption"),
		Attachment: &model.Attachment{
			URL:  url,
			Kind: kind,
			Name: header.Filename,
			Size: header.Size,
		},
	})
	if err != nil {
		// the message never existed, so the binary must not either
		if rmErr := a.Objects.Remove(context.Background(), key); rmErr != nil {
			logger.Warnf("[media] orphan cleanup key=%s: %v", key, rmErr)
		}
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// presence answers from the in-process tracker first; when the user is not
// connected here and the redis mirror is enabled, the mirror covers users
// held by another process.
func (a *API) presence(c *gin.Context) {
	user := c.Param("user")
	online := a.Presence.Online(user)
	if !online && storage.Enabled() {
		mirrored, err := storage.PresenceLookup(user)
		if err != nil {
			logger.Warnf("[presence] mirror lookup user=%s: %v", user, err)
		} else {
			online = mirrored
		}
	}
	c.JSON(http.StatusOK, gin.H{"user_id": user, "online": online})
}

func abortWith(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch errs.CodeOf(err) {
	case errs.CodeAuthentication:
		status = http.StatusUnauthorized
	case errs.CodeAuthorization:
		status = http.StatusForbidden
	case errs.CodeValidation:
		status = http.StatusBadRequest
	case errs.CodeNotFound:
		status = http.StatusNotFound
	}
	c.AbortWithStatusJSON(status, gin.H{"code": errs.CodeOf(err), "error": err.Error()})
}
