package graphql

import (
	"context"
	"encoding/json"
	"fmt"

	"xpdash/internal/core"
)

const (
	userQuery = `query {
  user {
    id
    login
    attrs
  }
}`

	xpTransactionsQuery = `query {
  transaction(where: {type: {_eq: "xp"}}, order_by: {createdAt: asc}) {
    id
    type
    amount
    createdAt
    path
    object {
      name
      type
    }
  }
}`

	auditTransactionsQuery = `query {
  transaction(where: {type: {_in: ["up", "down"]}}) {
    type
    amount
  }
}`

	skillTransactionsQuery = `query {
  transaction(where: {type: {_like: "skill_%"}}, order_by: {amount: desc}) {
    type
    amount
    createdAt
  }
}`

	progressQuery = `query {
  progress(order_by: {createdAt: desc}) {
    id
    grade
    createdAt
    path
    object {
      name
      type
    }
  }
}`
)

type userRow struct {
	ID    int64           `json:"id"`
	Login string          `json:"login"`
	Attrs json.RawMessage `json:"attrs"`
}

// User returns the signed-in user. The e-mail comes from attrs and falls back
// to the login.
func (c *Client) User(ctx context.Context, token string) (core.User, error) {
	var data struct {
		User json.RawMessage `json:"user"`
	}
	if err := c.Do(ctx, token, userQuery, nil, &data); err != nil {
		return core.User{}, err
	}

	// user is a list with one row; older engines returned the object itself
	var row userRow
	var rows []userRow
	if err := json.Unmarshal(data.User, &rows); err == nil {
		if len(rows) == 0 {
			return core.User{}, fmt.Errorf("graphql: no user in response")
		}
		row = rows[0]
	} else if err := json.Unmarshal(data.User, &row); err != nil {
		return core.User{}, fmt.Errorf("decode user: %w", err)
	}

	u := core.User{ID: row.ID, Login: row.Login, Email: row.Login}
	var attrs struct {
		Email string `json:"email"`
	}
	if len(row.Attrs) > 0 && json.Unmarshal(row.Attrs, &attrs) == nil && attrs.Email != "" {
		u.Email = attrs.Email
	}
	return u, nil
}

func (c *Client) transactions(ctx context.Context, token, query, txType string) ([]core.TransactionRecord, error) {
	var data struct {
		Transaction []core.TransactionRecord `json:"transaction"`
	}
	if err := c.Do(ctx, token, query, nil, &data); err != nil {
		return nil, err
	}
	if data.Transaction == nil {
		return []core.TransactionRecord{}, nil
	}
	if txType != "" {
		for i := range data.Transaction {
			if data.Transaction[i].Type == "" {
				data.Transaction[i].Type = txType
			}
		}
	}
	return data.Transaction, nil
}

// XPTransactions returns every xp transaction ordered by creation time.
func (c *Client) XPTransactions(ctx context.Context, token string) ([]core.TransactionRecord, error) {
	return c.transactions(ctx, token, xpTransactionsQuery, "xp")
}

// AuditTransactions returns the up and down transactions.
func (c *Client) AuditTransactions(ctx context.Context, token string) ([]core.TransactionRecord, error) {
	return c.transactions(ctx, token, auditTransactionsQuery, "")
}

// SkillTransactions returns every skill_* transaction.
func (c *Client) SkillTransactions(ctx context.Context, token string) ([]core.TransactionRecord, error) {
	return c.transactions(ctx, token, skillTransactionsQuery, "")
}

type progressRow struct {
	ID        int64          `json:"id"`
	Grade     *float64       `json:"grade"`
	CreatedAt string         `json:"createdAt"`
	Path      string         `json:"path"`
	Object    core.ObjectRef `json:"object"`
}

// Progress returns progress entries, newest first.
func (c *Client) Progress(ctx context.Context, token string) ([]core.ProgressEntry, error) {
	var data struct {
		Progress []progressRow `json:"progress"`
	}
	if err := c.Do(ctx, token, progressQuery, nil, &data); err != nil {
		return nil, err
	}
	out := make([]core.ProgressEntry, 0, len(data.Progress))
	for _, p := range data.Progress {
		e := core.ProgressEntry{
			ID:        p.ID,
			CreatedAt: core.ParseTimestamp(p.CreatedAt),
			Path:      p.Path,
			Object:    p.Object,
		}
		if p.Grade != nil {
			e.Grade = *p.Grade
		}
		out = append(out, e)
	}
	return out, nil
}
