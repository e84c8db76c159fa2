package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ideahub/server/internal/ideas"
	"github.com/ideahub/server/internal/ws"
)

// --- Structs for request binding ---

// CreateIdeaInput is the submission body. Fields are plain typed
// strings; a JSON object where a string belongs is a bind error, never
// silently unwrapped.
type CreateIdeaInput struct {
	Title    string `json:"title" binding:"required"`
	Summary  string `json:"summary" binding:"required"`
	Details  string `json:"details"`
	Category string `json:"category" binding:"required"`
	IsNew    bool   `json:"is_new"`
}

type VoteInput struct {
	VoteType string `json:"vote_type" binding:"required"`
}

type ListQuery struct {
	Category string `form:"category"`
	Sort     string `form:"sort,default=recent"`
	Page     int    `form:"page,default=1"`
	PerPage  int    `form:"per_page,default=20"`
}

// WsMessage is the envelope pushed to websocket subscribers.
type WsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// --- Handlers ---

// Env bundles the handler dependencies.
type Env struct {
	Svc *ideas.Service
	Hub *ws.Hub
}

func (e *Env) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (e *Env) CreateIdea(c *gin.Context) {
	var input CreateIdeaInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	idea, err := e.Svc.Submit(ideas.SubmitInput{
		Title:    input.Title,
		Summary:  input.Summary,
		Details:  input.Details,
		Category: input.Category,
		IsNew:    input.IsNew,
	})
	if err != nil {
		e.respondError(c, err, "Failed to create idea")
		return
	}

	c.JSON(http.StatusCreated, idea)
}

func (e *Env) VoteOnIdea(c *gin.Context) {
	var input VoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	ideaID := c.Param("id")
	voterHash := c.GetString(ctxVoterHash)
	if voterHash == "" {
		// Route misconfiguration: the fingerprint middleware must run first.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process vote"})
		return
	}

	up, down, err := e.Svc.CastVote(ideaID, voterHash, input.VoteType)
	if err != nil {
		e.respondError(c, err, "Failed to process vote")
		return
	}

	payload := gin.H{"idea_id": ideaID, "upvotes": up, "downvotes": down}
	e.broadcastMessage(WsMessage{Type: "vote", Data: payload})

	c.JSON(http.StatusOK, payload)
}

func (e *Env) ListIdeas(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query: " + err.Error()})
		return
	}

	list, err := e.Svc.ListApproved(q.Category, q.Sort, q.Page, q.PerPage)
	if err != nil {
		e.respondError(c, err, "Failed to fetch ideas")
		return
	}
	c.JSON(http.StatusOK, list)
}

func (e *Env) ApproveIdea(c *gin.Context) {
	idea, err := e.Svc.Approve(c.Param("id"))
	if err != nil {
		e.respondError(c, err, "Failed to approve idea")
		return
	}

	e.broadcastMessage(WsMessage{Type: "idea_approved", Data: idea})
	c.JSON(http.StatusOK, idea)
}

func (e *Env) RejectIdea(c *gin.Context) {
	idea, err := e.Svc.Reject(c.Param("id"))
	if err != nil {
		e.respondError(c, err, "Failed to reject idea")
		return
	}
	c.JSON(http.StatusOK, idea)
}

// respondError maps service errors onto HTTP statuses.
func (e *Env) respondError(c *gin.Context, err error, fallback string) {
	var verr *ideas.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Reason, "field": verr.Field})
	case errors.Is(err, ideas.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Idea not found"})
	case errors.Is(err, ideas.ErrNotApproved):
		c.JSON(http.StatusConflict, gin.H{"error": "Idea is not approved for voting"})
	case errors.Is(err, ideas.ErrStateConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Idea has already been moderated"})
	case errors.Is(err, ideas.ErrSlugConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Idea with a similar title already exists"})
	case errors.Is(err, ideas.ErrStorageConflict):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Temporarily busy, please retry"})
	default:
		log.Printf("%s: %v", fallback, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func (e *Env) broadcastMessage(msg WsMessage) {
	if e.Hub == nil {
		return
	}
	jsonMsg, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshalling WS message: %v", err)
		return
	}
	e.Hub.Broadcast <- jsonMsg
}
