package jenv

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetAndGet(t *testing.T) {
	const key = "JACS_TEST_SET_GET"
	Set(key, "value")
	defer Clear(key)
	require.Equal(t, "value", Get(key))
}

func TestOverrideTakesPrecedence(t *testing.T) {
	const key = "JACS_TEST_OVERRIDE"
	t.Setenv(key, "from-env")
	Set(key, "from-override")
	defer Clear(key)
	require.Equal(t, "from-override", Get(key))

	Clear(key)
	require.Equal(t, "from-env", Get(key))
}

func TestGetRequired(t *testing.T) {
	_, err := GetRequired("JACS_TEST_NOT_EXISTS_12345", false)
	require.Error(t, err)

	const key = "JACS_TEST_EMPTY"
	Set(key, "   ")
	defer Clear(key)
	_, err = GetRequired(key, true)
	require.Error(t, err)
	v, err := GetRequired(key, false)
	require.NoError(t, err)
	require.Equal(t, "   ", v)
}

func TestSetDefault(t *testing.T) {
	const key = "JACS_TEST_SET_DEFAULT"
	SetDefault(key, "first")
	SetDefault(key, "second")
	defer Clear(key)
	require.Equal(t, "first", Get(key))
}

func TestBoolAndInt(t *testing.T) {
	const key = "JACS_TEST_FLAGS"
	defer Clear(key)
	for _, v := range []string{"true", "TRUE", "1"} {
		Set(key, v)
		require.True(t, Bool(key), v)
	}
	Set(key, "no")
	require.False(t, Bool(key))

	Set(key, "42")
	require.Equal(t, 42, Int(key, 7))
	Set(key, "junk")
	require.Equal(t, 7, Int(key, 7))
}

func TestConcurrentAccess(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("JACS_TEST_CONCURRENT_%d", i)
			for j := 0; j < 100; j++ {
				Set(key, fmt.Sprintf("value_%d", j))
				_ = Get(key)
			}
			Clear(key)
		}(i)
	}
	wg.Wait()
}
