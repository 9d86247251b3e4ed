package http

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/couchcryptid/od-flow-service/internal/domain"
	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// flowQuery is the validated form of the selection query string.
type flowQuery struct {
	ExcludeSameZone bool
	Origin          string `validate:"max=200"`
	Destination     string `validate:"max=200"`
	TopN            int    `validate:"gte=0"`
}

// ParamError is a malformed or out-of-range query parameter.
type ParamError struct {
	Field   string
	Message string
}

func (e *ParamError) Error() string {
	return e.Message
}

// parseExcludeSameZone reads the same-zone toggle, which defaults to true.
func parseExcludeSameZone(q url.Values) (bool, error) {
	v := q.Get("exclude_same_zone")
	if v == "" {
		return true, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &ParamError{Field: "exclude_same_zone", Message: "exclude_same_zone must be a boolean"}
	}
	return b, nil
}

// parseFlowQuery reads exclude_same_zone, origin, destination and top_n.
// exclude_same_zone defaults to true; a missing origin falls back to
// defaultOrigin. An explicit "all" (or the all-zones label) always means no
// restriction.
func parseFlowQuery(q url.Values, defaultOrigin string) (domain.SelectionParams, error) {
	fq := flowQuery{
		ExcludeSameZone: true,
		Origin:          strings.TrimSpace(q.Get("origin")),
		Destination:     strings.TrimSpace(q.Get("destination")),
	}
	if !q.Has("origin") {
		fq.Origin = defaultOrigin
	}

	exclude, err := parseExcludeSameZone(q)
	if err != nil {
		return domain.SelectionParams{}, err
	}
	fq.ExcludeSameZone = exclude
	if v := q.Get("top_n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return domain.SelectionParams{}, &ParamError{Field: "top_n", Message: "top_n must be an integer"}
		}
		fq.TopN = n
	}

	if err := getValidator().Struct(fq); err != nil {
		return domain.SelectionParams{}, translateValidation(err)
	}

	return domain.SelectionParams{
		ExcludeSameZone: fq.ExcludeSameZone,
		Origin:          fq.Origin,
		Destination:     fq.Destination,
		TopN:            fq.TopN,
	}, nil
}

var queryNames = map[string]string{
	"Origin":      "origin",
	"Destination": "destination",
	"TopN":        "top_n",
}

var tagMessages = map[string]string{
	"gte": "%s must be greater than or equal to %s",
	"max": "%s must be at most %s characters",
}

func translateValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ParamError{Field: "unknown", Message: err.Error()}
	}
	fe := verrs[0]
	name := queryNames[fe.Field()]
	if name == "" {
		name = fe.Field()
	}
	tmpl, ok := tagMessages[fe.Tag()]
	if !ok {
		return &ParamError{Field: name, Message: fmt.Sprintf("%s failed %s validation", name, fe.Tag())}
	}
	return &ParamError{Field: name, Message: fmt.Sprintf(tmpl, name, fe.Param())}
}
