package idwrap

import (
	"database/sql/driver"
	"time"

	"github.com/oklog/ulid/v2"
)

// IDWrap wraps a ULID so models never depend on the ulid package directly.
type IDWrap struct {
	ulid ulid.ULID
}

func New(id ulid.ULID) IDWrap {
	return IDWrap{ulid: id}
}

func NewNow() IDWrap {
	return IDWrap{ulid: ulid.Make()}
}

func NewText(s string) (IDWrap, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return IDWrap{}, err
	}
	return IDWrap{ulid: id}, nil
}

func NewTextMust(s string) IDWrap {
	id, err := ulid.Parse(s)
	if err != nil {
		panic(err)
	}
	return IDWrap{ulid: id}
}

func NewFromBytes(data []byte) (IDWrap, error) {
	var id ulid.ULID
	err := id.UnmarshalBinary(data)
	return IDWrap{ulid: id}, err
}

func (u IDWrap) String() string {
	return u.ulid.String()
}

func (u IDWrap) Bytes() []byte {
	return u.ulid[:]
}

func (u IDWrap) Compare(other IDWrap) int {
	return u.ulid.Compare(other.ulid)
}

func (u IDWrap) IsZero() bool {
	return u.ulid == ulid.ULID{}
}

// Time returns the timestamp embedded in the ULID.
func (u IDWrap) Time() time.Time {
	return time.UnixMilli(int64(u.ulid.Time()))
}

// SQL driver value
func (u IDWrap) Value() (driver.Value, error) {
	return u.ulid.Value()
}

func (u *IDWrap) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return u.ulid.UnmarshalBinary(v)
	case string:
		id, err := ulid.Parse(v)
		if err != nil {
			return err
		}
		u.ulid = id
		return nil
	default:
		return ulid.ErrDataSize
	}
}
