package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Wirlhawk/skillswap-sub000/internal/apperrors"
	"github.com/Wirlhawk/skillswap-sub000/internal/session"
)

// currentSession returns the session the auth middleware attached, or nil
func currentSession(c *gin.Context) *session.Session {
	return session.FromContext(c.Request.Context())
}

// requireSession writes an authentication error when the request has no session
func requireSession(c *gin.Context) (*session.Session, bool) {
	sess := currentSession(c)
	if sess == nil {
		WriteError(c, apperrors.Authentication("authentication required"))
		return nil, false
	}
	return sess, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		WriteError(c, apperrors.ValidationFields("invalid path parameter", map[string]string{name: "must be a uuid"}))
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		WriteError(c, apperrors.Validation("invalid request body").WithCause(err))
		return false
	}
	return true
}

// queryParser collects query parameter errors so they are reported together
type queryParser struct {
	c      *gin.Context
	fields map[string]string
}

func newQueryParser(c *gin.Context) *queryParser {
	return &queryParser{c: c, fields: map[string]string{}}
}

func (p *queryParser) intValue(name string, def int) int {
	raw := p.c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fields[name] = "must be an integer"
		return def
	}
	return n
}

func (p *queryParser) uuidValue(name string) *uuid.UUID {
	raw := p.c.Query(name)
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		p.fields[name] = "must be a uuid"
		return nil
	}
	return &id
}

func (p *queryParser) timeValue(name string) *time.Time {
	raw := p.c.Query(name)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		p.fields[name] = "must be an RFC 3339 timestamp"
		return nil
	}
	return &t
}

// ok writes a validation error when any parameter failed to parse
func (p *queryParser) ok() bool {
	if len(p.fields) == 0 {
		return true
	}
	WriteError(p.c, apperrors.ValidationFields("invalid query parameters", p.fields))
	return false
}
