package http

import (
	"net/http"
	"strconv"

	"slotbook/pkg/config"
	apperrors "slotbook/pkg/errors"
	"slotbook/pkg/model"
)

const (
	HeaderActorID   = "X-Actor-Id"
	HeaderActorRole = "X-Actor-Role"
)

func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64
	if s := query.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = v
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	return limit, offset, nil
}

// ExtractActor reads the acting identity from request headers. The route
// layer is not an auth boundary; it only relays who is acting in what role
// so the engine can stamp the audit trail.
func ExtractActor(r *http.Request) (model.Actor, error) {
	actor := model.Actor{
		ID:   r.Header.Get(HeaderActorID),
		Role: model.Role(r.Header.Get(HeaderActorRole)),
	}

	if actor.ID == "" {
		return model.Actor{}, apperrors.InvalidInput(HeaderActorID + " header is required")
	}
	if !actor.Role.IsValid() {
		return model.Actor{}, apperrors.InvalidInput(HeaderActorRole + " must be one of GIVER, TAKER, SYSTEM")
	}

	return actor, nil
}
