package game

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"trivia/domain"
	"trivia/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	defaultResultsLimit = 20
	maxResultsLimit     = 100
)

type RoomLookup interface {
	Snapshot(ctx context.Context, code string) (RoomSnapshot, error)
}

type GameHandler struct {
	joiner   Joiner
	rooms    RoomLookup
	results  ResultReader
	upgrader websocket.Upgrader
}

// NewGameHandler wires the HTTP surface. results may be nil when no archive
// is configured.
func NewGameHandler(joiner Joiner, rooms RoomLookup, results ResultReader, allowedOrigins []string) *GameHandler {
	return &GameHandler{
		joiner:  joiner,
		rooms:   rooms,
		results: results,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
			},
		},
	}
}

func (h *GameHandler) WebsocketHandler(ctx *gin.Context) {
	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		logger.Warningf("WS upgrade failed for %s: %v", ctx.ClientIP(), err)
		return
	}

	player := NewPlayer(NewWebsocketConnection(conn), h.joiner)
	go player.WritePump()
	go player.ReadPump()
}

func (h *GameHandler) RoomHandler(ctx *gin.Context) {
	code := strings.ToUpper(ctx.Param("code"))

	snapshot, err := h.rooms.Snapshot(ctx.Request.Context(), code)
	if errors.Is(err, domain.ErrRoomNotFound) {
		ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": domain.ErrRoomNotFound.Error()})
		return
	}
	if err != nil {
		logger.Criticalf("Failed to snapshot room %s: %v", code, err)
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
		return
	}

	ctx.JSON(http.StatusOK, snapshot)
}

func (h *GameHandler) ResultsHandler(ctx *gin.Context) {
	if h.results == nil {
		ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "archive-disabled"})
		return
	}

	limit := defaultResultsLimit
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxResultsLimit {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid-limit"})
			return
		}
		limit = n
	}

	results, err := h.results.RecentResults(ctx.Request.Context(), limit)
	if err != nil {
		logger.Criticalf("Failed to load recent results: %v", err)
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
		return
	}
	if results == nil {
		results = []domain.GameResult{}
	}

	ctx.JSON(http.StatusOK, gin.H{"results": results})
}
