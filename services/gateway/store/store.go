// Copyright (C) 2025 Moodchat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/moodchat/moodchat/pkg/auth"
	"github.com/moodchat/moodchat/services/gateway/datatypes"
)

// Key layout. Message keys embed an inverted timestamp so a forward
// prefix scan yields newest-first ordering without a reverse iterator.
//
//	user/<userID>                          → datatypes.User
//	profile/<userID>                       → datatypes.Profile
//	msg/<userID>/<inverted-nanos>/<uuid>   → datatypes.Message
//	act/<userID>/<inverted-nanos>/<uuid>   → datatypes.Activity
const (
	userPrefix     = "user/"
	profilePrefix  = "profile/"
	messagePrefix  = "msg/"
	activityPrefix = "act/"
)

// Store wraps a BadgerDB handle with the gateway's persistence
// operations. All writes are append-only; nothing in turn processing
// mutates or deletes existing records.
type Store struct {
	db *badger.DB
}

// New wraps an opened BadgerDB handle. The Store does not own the
// handle; the caller closes it.
func New(db *badger.DB) *Store {
	return &Store{db: db}
}

// invertedNanos returns a fixed-width sortable key segment that orders
// newer timestamps first.
func invertedNanos(t time.Time) string {
	return fmt.Sprintf("%020d", int64(^uint64(t.UnixNano())>>1))
}

func putJSON(txn *badger.Txn, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", key, err)
	}
	return txn.Set([]byte(key), raw)
}

func getJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

// SaveMessage persists one side of a turn. ID and CreatedAt are filled
// in when empty so callers only supply owner, role, and content.
func (s *Store) SaveMessage(ctx context.Context, msg datatypes.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.UserID == "" {
		return fmt.Errorf("store: message owner required")
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	key := messagePrefix + msg.UserID + "/" + invertedNanos(msg.CreatedAt) + "/" + msg.ID
	return s.db.Update(func(txn *badger.Txn) error {
		return putJSON(txn, key, msg)
	})
}

// ListMessages returns up to limit messages for the user, newest
// first. A non-positive limit returns everything.
func (s *Store) ListMessages(ctx context.Context, userID string, limit int) ([]datatypes.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []datatypes.Message
	prefix := []byte(messagePrefix + userID + "/")
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var msg datatypes.Message
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			})
			if err != nil {
				return err
			}
			out = append(out, msg)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	return out, nil
}

// SaveActivity records one user activity entry (place, memo,
// companion). Feeds the keyword context lookup.
func (s *Store) SaveActivity(ctx context.Context, act datatypes.Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if act.UserID == "" {
		return fmt.Errorf("store: activity owner required")
	}
	if act.ID == "" {
		act.ID = uuid.New().String()
	}
	if act.CreatedAt.IsZero() {
		act.CreatedAt = time.Now()
	}
	key := activityPrefix + act.UserID + "/" + invertedNanos(act.CreatedAt) + "/" + act.ID
	return s.db.Update(func(txn *badger.Txn) error {
		return putJSON(txn, key, act)
	})
}

// ListActivities returns the user's activity records, newest first.
func (s *Store) ListActivities(ctx context.Context, userID string) ([]datatypes.Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []datatypes.Activity
	prefix := []byte(activityPrefix + userID + "/")
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var act datatypes.Activity
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &act)
			})
			if err != nil {
				return err
			}
			out = append(out, act)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: list activities: %w", err)
	}
	return out, nil
}

// PutUser stores an account record.
func (s *Store) PutUser(ctx context.Context, user datatypes.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user.ID == "" {
		return fmt.Errorf("store: user id required")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return putJSON(txn, userPrefix+user.ID, user)
	})
}

// GetPrincipal implements auth.PrincipalDirectory on top of the user
// records.
func (s *Store) GetPrincipal(ctx context.Context, userID string) (*auth.Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var user datatypes.User
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userPrefix+userID, &user)
	})
	if err != nil {
		return nil, fmt.Errorf("store: get user %q: %w", userID, err)
	}
	username := user.Username
	if username == "" {
		username = user.ID
	}
	return &auth.Principal{UserID: user.ID, Username: username, Active: user.Active}, nil
}

// PutProfile stores a persona profile snapshot.
func (s *Store) PutProfile(ctx context.Context, profile datatypes.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if profile.UserID == "" {
		return fmt.Errorf("store: profile owner required")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return putJSON(txn, profilePrefix+profile.UserID, profile)
	})
}

// GetProfile returns the user's persona profile. A missing profile is
// not an error: the zero-score default applies, checked once at
// connection setup rather than per turn.
func (s *Store) GetProfile(ctx context.Context, userID string) (datatypes.Profile, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.Profile{}, err
	}
	var profile datatypes.Profile
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, profilePrefix+userID, &profile)
	})
	if err == badger.ErrKeyNotFound {
		return datatypes.DefaultProfile(userID), nil
	}
	if err != nil {
		return datatypes.Profile{}, fmt.Errorf("store: get profile %q: %w", userID, err)
	}
	return profile, nil
}
