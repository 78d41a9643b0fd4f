package goAccounts

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrEthical07/goAccounts/validate"
)

// FindAccountByQuery describes the findaccountbyquery operation and its observable behavior.
//
// FindAccountByQuery may return an error when query is nil, empty or of an unsupported type, or when the store fails.
// FindAccountByQuery returns (nil, nil) when no account matches. The credential is never loaded.
//
// query may be a Query, a *Query or a map keyed by "id" (or "_id"),
// "username" and "email" (or "emails.address").
func (e *Engine) FindAccountByQuery(ctx context.Context, query any) (_ *Account, err error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "find_account")
	defer func() { endSpan(span, err) }()

	if query == nil {
		return nil, ErrQueryRequired
	}
	q, err := decodeQuery(query)
	if err != nil {
		return nil, err
	}
	if q.IsZero() {
		return nil, ErrQueryRequired
	}
	return e.findOne(ctx, q, false)
}

// FindAccountByUsername looks an account up by its trimmed username.
func (e *Engine) FindAccountByUsername(ctx context.Context, username string) (*Account, error) {
	username = validate.NormalizeUsername(username)
	if username == "" {
		return nil, ErrQueryRequired
	}
	return e.FindAccountByQuery(ctx, Query{Username: username})
}

// FindAccountByEmail looks an account up by any of its addresses.
func (e *Engine) FindAccountByEmail(ctx context.Context, address string) (*Account, error) {
	address = validate.NormalizeEmail(address)
	if address == "" {
		return nil, ErrEmailRequired
	}
	if !validate.IsEmail(address) {
		return nil, ErrInvalidEmail
	}
	return e.FindAccountByQuery(ctx, Query{EmailAddress: address})
}

// FindAccountByID looks an account up by its store id.
func (e *Engine) FindAccountByID(ctx context.Context, id string) (*Account, error) {
	if id == "" {
		return nil, ErrAccountIDRequired
	}
	return e.FindAccountByQuery(ctx, Query{ID: id})
}

// decodeQuery resolves the accepted query shapes into a normalized Query.
// A nil *Query yields the zero Query.
func decodeQuery(query any) (Query, error) {
	var q Query
	switch v := query.(type) {
	case Query:
		q = v
	case *Query:
		if v != nil {
			q = *v
		}
	case map[string]string:
		for key, value := range v {
			if err := setQueryField(&q, key, value); err != nil {
				return Query{}, err
			}
		}
	case map[string]any:
		for key, raw := range v {
			value, ok := raw.(string)
			if !ok {
				return Query{}, newError(KindInvalidArgument, fmt.Sprintf("Query field %q must be a string.", key))
			}
			if err := setQueryField(&q, key, value); err != nil {
				return Query{}, err
			}
		}
	default:
		return Query{}, ErrInvalidArgument
	}

	q.Username = validate.NormalizeUsername(q.Username)
	q.EmailAddress = validate.NormalizeEmail(q.EmailAddress)
	q.ID = strings.TrimSpace(q.ID)
	return q, nil
}

func setQueryField(q *Query, key, value string) error {
	switch key {
	case "id", "_id":
		q.ID = value
	case "username":
		q.Username = value
	case "email", "emails.address":
		q.EmailAddress = value
	default:
		return newError(KindInvalidArgument, fmt.Sprintf("Unsupported query field %q.", key))
	}
	return nil
}
