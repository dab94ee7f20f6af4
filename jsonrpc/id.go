package jsonrpc

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a JSON-RPC request identifier.
//
// Per the JSON-RPC 2.0 spec it may be a string, a number, or null.
// The server must echo the same value back in the response so the
// caller can correlate request/response pairs.
type ID struct {
	intID int64
	strID string
}

func IDFromInt(id int64) ID {
	return ID{intID: id}
}

func IDFromStr(id string) ID {
	return ID{strID: id}
}

// String returns the ID in its textual form.
// The string form takes precedence if both fields are set.
func (id ID) String() string {
	if id.strID != "" {
		return id.strID
	}
	return strconv.FormatInt(id.intID, 10)
}

func (id ID) IsEmpty() bool {
	return id.intID == 0 && id.strID == ""
}

// Equal reports whether two IDs refer to the same request.
func (id ID) Equal(other ID) bool {
	return id.intID == other.intID && id.strID == other.strID
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id.strID != "" {
		return []byte(fmt.Sprintf("%q", id.strID)), nil
	}
	return []byte(strconv.FormatInt(id.intID, 10)), nil
}

func (id *ID) UnmarshalJSON(data []byte) error {
	var intID int64
	if err := json.Unmarshal(data, &intID); err == nil {
		id.intID = intID
		return nil
	}

	var strID string
	if err := json.Unmarshal(data, &strID); err != nil {
		return err
	}

	id.strID = strID
	return nil
}
