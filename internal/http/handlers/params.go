package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/noc-backend/internal/pkg/apierr"
	"github.com/yungbote/noc-backend/internal/pkg/ctxutil"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
)

func dbcOf(c *gin.Context) dbctx.Context {
	return dbctx.Context{Ctx: c.Request.Context()}
}

// caller returns the authenticated request data. Routes behind RequireAuth
// always have it.
func caller(c *gin.Context) *ctxutil.RequestData {
	if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
		return rd
	}
	return &ctxutil.RequestData{}
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, apierr.Invalid("invalid_"+name, "invalid %s %q", name, c.Param(name))
	}
	return id, nil
}

func optionalUUIDQuery(c *gin.Context, name string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apierr.Invalid("invalid_"+name, "invalid %s %q", name, raw)
	}
	return &id, nil
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apierr.Invalid("invalid_"+name, "%s must be a non-negative integer", name)
	}
	return n, nil
}

// timeQuery accepts RFC3339 or unix seconds.
func timeQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		t := time.Unix(secs, 0).UTC()
		return &t, nil
	}
	return nil, apierr.Invalid("invalid_"+name, "%s must be RFC3339 or unix seconds", name)
}

func listQuery(c *gin.Context, name string) []string {
	var out []string
	for _, v := range c.QueryArray(name) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func bindError(err error) error {
	return apierr.Invalid("invalid_request", "%s", fmt.Sprint(err))
}
