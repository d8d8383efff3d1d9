package handler

import (
	"errors"
	"io"
	"time"

	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// uuidParam parses a path parameter, answering 400 when it is not a UUID
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondBadRequest(c, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// optionalGroup parses a blood group filter where empty means any
func optionalGroup(s string) (shared.BloodGroup, error) {
	if s == "" {
		return "", nil
	}
	return shared.ParseBloodGroup(s)
}

// optionalTime accepts RFC 3339 timestamps or plain dates. With endOfDay a plain
// date covers the whole day.
func optionalTime(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// bindOptionalJSON binds a request body that may be absent
func bindOptionalJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return false
	}
	return true
}
