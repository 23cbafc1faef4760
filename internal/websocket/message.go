package websocket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Client-invocable actions.
const (
	ActionJoinChat  = "JoinChat"
	ActionLeaveChat = "LeaveChat"
)

// ClientFrame is a message sent by a client over the hub connection.
type ClientFrame struct {
	Action  string  `json:"action"`
	GroupID GroupID `json:"groupId"`
}

// GroupID is a group name that clients may send as a JSON string or number.
type GroupID string

// UnmarshalJSON accepts "12" and 12 alike.
func (g *GroupID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*g = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*g = GroupID(s)
		return nil
	}
	n, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("groupId must be a string or a non-negative integer")
	}
	*g = GroupID(strconv.FormatUint(n, 10))
	return nil
}

// String returns the group name.
func (g GroupID) String() string {
	return string(g)
}
