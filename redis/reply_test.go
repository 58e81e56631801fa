package redis

import (
	"testing"

	"github.com/hmartiro/redox/redis/wire"
	"github.com/stretchr/testify/assert"
)

func TestDecodeString(t *testing.T) {
	v, status, err := decode(ShapeString, []byte("apple"))
	assert.NoError(t, err)
	assert.Equal(t, Ok, status)
	assert.Equal(t, []byte("apple"), v)

	v, status, err = decode(ShapeString, "OK")
	assert.NoError(t, err)
	assert.Equal(t, Ok, status)
	assert.Equal(t, []byte("OK"), v)
}

func TestDecodeNilForNonNilShapeIsNilReply(t *testing.T) {
	v, status, err := decode(ShapeString, nil)
	assert.NoError(t, err)
	assert.Equal(t, NilReply, status)
	assert.Nil(t, v)
}

func TestDecodeNilForRawOrNilShapeIsOk(t *testing.T) {
	v, status, _ := decode(ShapeRaw, nil)
	assert.Equal(t, Ok, status)
	assert.Nil(t, v)

	v, status, _ = decode(ShapeNil, nil)
	assert.Equal(t, Ok, status)
	assert.Nil(t, v)
}

func TestDecodeIntTruncates(t *testing.T) {
	big := int64(1) << 40
	v, status, _ := decode(ShapeInt, big)
	assert.Equal(t, Ok, status)
	assert.Equal(t, int32(big), v)
}

func TestDecodeLongFullWidth(t *testing.T) {
	v, status, _ := decode(ShapeLong, int64(1)<<40)
	assert.Equal(t, Ok, status)
	assert.Equal(t, int64(1)<<40, v)
}

func TestDecodeWrongType(t *testing.T) {
	_, status, _ := decode(ShapeVectorStrings, int64(5))
	assert.Equal(t, WrongType, status)

	_, status, _ = decode(ShapeInt, []byte("5"))
	assert.Equal(t, WrongType, status)
}

func TestDecodeErrorReply(t *testing.T) {
	v, status, err := decode(ShapeString, wire.Error("ERR no such key"))
	assert.Nil(t, v)
	assert.Equal(t, ErrorReply, status)
	assert.Equal(t, Error("ERR no such key"), err)
}

func TestDecodeVectorStrings(t *testing.T) {
	raw := []interface{}{[]byte("a"), []byte("b"), "c"}
	v, status, _ := decode(ShapeVectorStrings, raw)
	assert.Equal(t, Ok, status)
	assert.Equal(t, []string{"a", "b", "c"}, v)
}

func TestDecodeVectorStringsRejectsMixedArray(t *testing.T) {
	raw := []interface{}{[]byte("a"), int64(1)}
	v, status, _ := decode(ShapeVectorStrings, raw)
	assert.Nil(t, v)
	assert.Equal(t, WrongType, status)
}

func TestDecodeSetStrings(t *testing.T) {
	raw := []interface{}{[]byte("a"), []byte("b"), []byte("a")}
	v, status, _ := decode(ShapeSetStrings, raw)
	assert.Equal(t, Ok, status)
	set := v.(map[string]struct{})
	assert.Len(t, set, 2)
	assert.Contains(t, set, "a")
	assert.Contains(t, set, "b")
}
