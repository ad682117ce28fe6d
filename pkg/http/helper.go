package http

import (
	"net/http"
	"strconv"
	"time"
	"tourbook/pkg/config"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/model"
)

// ExtractLimitOffset reads ?limit and ?offset, clamping both to the configured bounds.
func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit, err := queryInt(query.Get("limit"), "limit")
	if err != nil {
		return 0, 0, err
	}
	offset, err := queryInt(query.Get("offset"), "offset")
	if err != nil {
		return 0, 0, err
	}

	return config.NormalizePaginationLimit(limit), config.NormalizeOffset(int64(offset)), nil
}

// ParseDateRange parses an inclusive YYYY-MM-DD range as UTC midnights.
func ParseDateRange(fromStr, toStr string) (time.Time, time.Time, error) {
	from, err := time.Parse(model.DateLayout, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.InvalidInput("from must be a YYYY-MM-DD date")
	}
	to, err := time.Parse(model.DateLayout, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.InvalidInput("to must be a YYYY-MM-DD date")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, apperrors.InvalidInput("to must not be before from")
	}
	return from, to, nil
}

func queryInt(s, name string) (int, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, apperrors.InvalidInput("invalid " + name + " parameter: " + s)
	}
	return v, nil
}
