package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGbk(t *testing.T) {
	gbk, err := Utf8StrToGbk("建筑物")
	require.NoError(t, err)
	assert.NotEqual(t, "建筑物", gbk)
	back, err := GbkStrToUtf8(gbk)
	require.NoError(t, err)
	assert.Equal(t, "建筑物", back)
}

func TestStr(t *testing.T) {
	assert.Equal(t, "ab", PurifyForUtf8("a\x00b\xff"))
}
