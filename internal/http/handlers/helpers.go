package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/buddybot-backend/internal/http/response"
	"github.com/yungbote/buddybot-backend/internal/pkg/ctxutil"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
)

var errUnauthenticated = errors.New("missing actor")

func dbcFrom(c *gin.Context) dbctx.Context {
	return dbctx.Context{Ctx: c.Request.Context()}
}

// requireActor writes a 401 and returns nil when the request carries no actor.
func requireActor(c *gin.Context) *ctxutil.Actor {
	actor := ctxutil.GetActor(c.Request.Context())
	if actor == nil || actor.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", errUnauthenticated)
		return nil
	}
	return actor
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_"+name, errors.New("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string, def int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
