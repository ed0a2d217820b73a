package utils

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

type ContestCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

func EncodeContestCursor(createdAt time.Time, id string) (string, error) {
	b, err := json.Marshal(ContestCursor{CreatedAt: createdAt, ID: id})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeContestCursor(cursor string) (ContestCursor, error) {
	if cursor == "" {
		return ContestCursor{}, errors.New("empty cursor")
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return ContestCursor{}, err
	}

	var c ContestCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return ContestCursor{}, err
	}
	if c.ID == "" || c.CreatedAt.IsZero() {
		return ContestCursor{}, errors.New("invalid cursor payload")
	}
	return c, nil
}
