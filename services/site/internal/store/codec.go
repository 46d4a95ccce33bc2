package store

import (
	"encoding/json"
	"fmt"

	"github.com/example/streamsite/services/site/internal/domain"
)

// stateColumns are the JSON-encoded user state columns, in patch order.
var stateColumns = []string{"library", "history", "progress", "ratings", "settings"}

// patchValues returns the column names and encoded JSON documents set in p.
func patchValues(p UserPatch) ([]string, [][]byte, error) {
	var cols []string
	var vals [][]byte
	add := func(col string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", col, err)
		}
		cols = append(cols, col)
		vals = append(vals, b)
		return nil
	}
	if p.Library != nil {
		if err := add("library", *p.Library); err != nil {
			return nil, nil, err
		}
	}
	if p.History != nil {
		if err := add("history", *p.History); err != nil {
			return nil, nil, err
		}
	}
	if p.Progress != nil {
		if err := add("progress", *p.Progress); err != nil {
			return nil, nil, err
		}
	}
	if p.Ratings != nil {
		if err := add("ratings", *p.Ratings); err != nil {
			return nil, nil, err
		}
	}
	if p.Settings != nil {
		if err := add("settings", *p.Settings); err != nil {
			return nil, nil, err
		}
	}
	return cols, vals, nil
}

// initialState encodes the state documents of a new user, one per stateColumns entry.
func initialState(u domain.User) ([][]byte, error) {
	u.EnsureMaps()
	_, vals, err := patchValues(UserPatch{
		Library: &u.Library, History: &u.History, Progress: &u.Progress,
		Ratings: &u.Ratings, Settings: &u.Settings,
	})
	return vals, err
}

// decodeState fills u's state fields from the raw column values, given in
// stateColumns order.
func decodeState(u *domain.User, raw ...[]byte) error {
	targets := []any{&u.Library, &u.History, &u.Progress, &u.Ratings, &u.Settings}
	if len(raw) != len(targets) {
		return fmt.Errorf("decode state: got %d columns, want %d", len(raw), len(targets))
	}
	for i, b := range raw {
		if len(b) == 0 {
			continue
		}
		if err := json.Unmarshal(b, targets[i]); err != nil {
			return fmt.Errorf("decode %s: %w", stateColumns[i], err)
		}
	}
	u.EnsureMaps()
	return nil
}

func encodeIDs(ids []string) []byte {
	if ids == nil {
		ids = []string{}
	}
	b, _ := json.Marshal(ids)
	return b
}

func decodeIDs(raw []byte) ([]string, error) {
	out := []string{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
